// The main package for the picklist-crawler executable.
package main

import (
	"github.com/formpick/picklist-crawler/cmd"
)

func main() {
	cmd.Execute()
}
