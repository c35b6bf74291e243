/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/taskmanager/apiserver/cmd"

func main() {
	cmd.Execute()
}
