// Command heapctl creates, inspects and drives kernel heap image files.
package main

func main() {
	execute()
}
