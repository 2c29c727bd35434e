/*
main.go

Copyright © 2025 Code Monkey Cybersecurity
Contact: git@cybermonkey.net.au

This file is part of AGMS Enterprise.
*/
package main

import (
	"github.com/CodeMonkeyCybersecurity/agms/cmd"
	"github.com/CodeMonkeyCybersecurity/agms/pkg/logger"
)

func main() {
	logger.InitFallback()
	cmd.Execute()
}
