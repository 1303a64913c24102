//go:build tools

// Package roomchat pins code generators invoked through go generate.
package roomchat

import (
	_ "go.uber.org/mock/mockgen"
)
