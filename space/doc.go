// Package space models the action and observation spaces advertised by a gym
// server.
//
// A Space is produced exactly once per environment instantiation by decoding
// a space descriptor and is immutable afterwards. Three kinds are understood:
//
//	Discrete      : a single integer in [0, n)
//	MultiDiscrete : an ordered vector of integers
//	Box           : a real-valued tensor of rank 1, 2 or 3 with per-element bounds
//
// Descriptors naming any other kind classify as Unknown rather than failing.
// Operations that depend on the kind (encoding an action, decoding a sample)
// reject Unknown spaces with ErrInvalidSpaceKind.
package space
