/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/cafe-inventory/server/cmd"

func main() {
	cmd.Execute()
}
