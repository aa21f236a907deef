package main

import (
	"os"
	"runtime/pprof"
	"testing"
)

func TestMain(m *testing.M) {
	// Profile the test run; the resulting default.pgo feeds PGO builds.
	f, err := os.Create("default.pgo")
	if err != nil {
		panic(err)
	}
	defer f.Close()

	err = pprof.StartCPUProfile(f)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	pprof.StopCPUProfile()

	os.Exit(code)
}
