package main

import "github.com/dbsmedya/dedupe/cmd/dedupe/cmd"

func main() {
	cmd.Execute()
}
