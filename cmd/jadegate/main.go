// Command jadegate is a local, network-free security gateway that
// intercepts Model Context Protocol tool calls between an AI agent and
// the external tools it invokes.
package main

import "github.com/jadegate/jadegate/internal/cli"

func main() {
	cli.Execute()
}
