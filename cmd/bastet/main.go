package main

import (
	"context"
	"os"

	"github.com/mewbotorg/bastet/cmd/bastet/commands"
)

func main() {
	os.Exit(commands.Execute(context.Background()))
}
