package main

import (
	"fmt"
	"os"

	"asnblock/cmd"
	"asnblock/internal/brand"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "update":
		err = cmd.RunUpdate(os.Args[2:])

	case "block":
		err = cmd.RunBlock(os.Args[2:])

	case "unblock":
		err = cmd.RunUnblock(os.Args[2:])

	case "status":
		err = cmd.RunStatus(os.Args[2:])

	case "lookup":
		err = cmd.RunLookup(os.Args[2:])

	case "config":
		err = cmd.RunConfig(os.Args[2:])

	case "version":
		fmt.Printf("%s version %s\n", brand.Name, brand.Version)

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - block entire autonomous systems at the firewall

Usage:
  %s <command> [options]

Commands:
  update    Download and normalize the IP-to-ASN datasets
            Options: --config (-c) <file>
  block     Block all announced prefixes of an ASN
            Options: --dry-run (-n), --verbose (-v), --config (-c) <file>
  unblock   Remove an ASN's rules and address sets
            Options: --dry-run (-n), --config (-c) <file>
  status    Show cached dataset state and blocked ASNs
  lookup    Resolve an ASN, IP or hostname against the datasets
  config    Manage configuration (init, show)
  version   Print version information

Examples:
  %s update
  %s block 64500 --dry-run
  %s unblock 64500
  %s lookup 8.8.8.8

`, brand.Name, brand.BinaryName, brand.BinaryName, brand.BinaryName, brand.BinaryName, brand.BinaryName)
}
