// LFO - Log Forwarding Orchestration control plane.
package main

func main() {
	Execute()
}
