// Command promptstudio runs the prompt studio CLI and HTTP server.
package main

import "github.com/mihaimyh/promptstudio/internal/cli"

func main() {
	cli.Execute()
}
