//go:build !gui

package main

import (
	"fmt"

	"respire/config"
)

func newGUIView(viewInfo) (view, error) {
	return nil, fmt.Errorf("%w: built without GUI support (rebuild with -tags gui)", config.ErrUsage)
}
