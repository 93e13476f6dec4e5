// Command headerproof validates Bitcoin header chains and seals the result
// into verifiable receipts.
package main

func main() {
	Execute()
}
