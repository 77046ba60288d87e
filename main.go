// The main package for the dwellist executable.
package main

import (
	"github.com/JakeFAU/dwellist/cmd"
)

func main() {
	cmd.Execute()
}
