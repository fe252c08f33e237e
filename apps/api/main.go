// Command api serves the attendance HTTP API.
package main

func main() {
	startWithDig()
}
