package main

import (
	"os"

	"github.com/kishika1sei/askdesk/cmd/askdesk/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
