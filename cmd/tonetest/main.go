package main

import (
	"fmt"
	"os"
	"time"

	"go-ripple/midi"
	"go-ripple/tuning"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "scale":
		key := tuning.Default
		if len(os.Args) > 2 {
			key = tuning.Key(os.Args[2])
		}
		port := ""
		if len(os.Args) > 3 {
			port = os.Args[3]
		}
		playScale(key, port)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("Tone Test")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                 - List MIDI output ports")
	fmt.Println("  scale [tuning] [port] - Play a tuning bottom row to top")
	fmt.Println("")
	fmt.Print("Tunings:")
	for _, k := range tuning.Keys() {
		fmt.Printf(" %s", k)
	}
	fmt.Println()
}

func listPorts() {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")
	names, err := midi.OutPortNames()
	if err != nil {
		fmt.Printf("\n%v\n", err)
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}
	for i, name := range names {
		fmt.Printf("  %d: %s\n", i, name)
	}
}

func playScale(key tuning.Key, port string) {
	t, err := tuning.Get(key)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	synth := midi.NewSynth(port, 1, 200*time.Millisecond)
	defer midi.Close()
	if err := synth.Init(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	fmt.Printf("Playing %s (%s)\n", t.Name, t.Key)
	for row := len(t.Notes) - 1; row >= 0; row-- {
		p := t.Notes[row]
		n, _ := p.MIDINote()
		fmt.Printf("  row %2d  %-4s note %d\n", row, p, n)
		synth.Trigger(p)
		time.Sleep(250 * time.Millisecond)
	}
	// Let the last note off go out
	time.Sleep(300 * time.Millisecond)
}
