// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/jcodagnone/eaterymap/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
