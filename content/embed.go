// Package content embeds the default combat content: the player, its
// actions and the three enemy archetypes.
package content

import "embed"

// FS holds the default .lua content files.
//
//go:embed *.lua
var FS embed.FS

// StarterTree is the behaviour tree a session starts with.
//
//go:embed starter.bt
var StarterTree string
