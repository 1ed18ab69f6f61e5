package main

import (
	"github.com/Xa3rO1986/mikkeller-rc-sub000/cmd"
)

func main() {
	cmd.Execute()
}
