// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/sectorfs/cmd/sectorfs/cmd"
)

func main() {
	cmd.Execute()
}
