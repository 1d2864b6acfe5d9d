/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/bkk513/misspelling-platform/cmd"

func main() {
	cmd.Execute()
}
