// Tango types text with facial expressions: angry picks the left half of
// the on-screen alphabet, happy the right half, surprised deletes.
package main

func main() {
	Execute()
}
