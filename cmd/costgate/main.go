// Package main is the entry point for costgate, the cost governance engine:
// price history tracking, spike detection, cost estimation, and cost-aware
// tier routing for multi-tier model billing.
package main

func main() {
	Execute()
}
