package main

import (
	"github.com/skatehub/ecommerce/cmd"
)

func main() {
	cmd.Start()
}
