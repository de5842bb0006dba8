package main

import "github.com/myshdb/clusteradm/cmd"

func main() {
	cmd.Execute()
}
