// Command macroengine runs the gesture-driven keyboard macro engine.
package main

func main() {
	Execute()
}
