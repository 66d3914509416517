// Command admin is the operator tool for the signaling service: bans, room
// archives, the waiting-queue mirror and live pair events.
package main

func main() {
	Execute()
}
