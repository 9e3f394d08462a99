// mockfirebolt - mock Firebolt device server
package main

import "github.com/getmockd/mockfirebolt/pkg/cli"

func main() {
	cli.Execute()
}
