// Command skillroute indexes a directory of skill descriptions and routes
// tasks to them.
package main

func main() {
	Execute()
}
