package main

import "github.com/DIRACGrid/diracci/cmd/diracci"

func main() {
	diracci.Execute()
}
