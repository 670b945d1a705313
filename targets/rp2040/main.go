//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"sparkbox/core"
	"sparkbox/protocol"
)

var (
	bridge *core.Bridge
	midiIn *MidiRx
	knob   *encoderKnob

	// Debug counters
	msgerrors     uint32
	readerRestart uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	// USB CDC carries debug output only
	core.SetDebugWriter(func(s string) {
		machine.Serial.Write([]byte(s))
		machine.Serial.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()

	mode := GetMode()

	ampUART := machine.UART0
	ampUART.Configure(machine.UARTConfig{BaudRate: linkBaud, TX: ampTX, RX: ampRX})

	var appUART *machine.UART
	if mode.Passthrough {
		appUART = machine.UART1
		appUART.Configure(machine.UARTConfig{BaudRate: linkBaud, TX: appTX, RX: appRX})
	}

	cfg := core.DefaultBridgeConfig()
	cfg.Mapping = footMapping()
	if appUART != nil {
		bridge = core.NewBridge(ampUART, appUART, cfg)
	} else {
		bridge = core.NewBridge(ampUART, nil, cfg)
	}

	if _, err := bridge.AttachLED(NewRPGPIODriver(), statusLED); err != nil {
		core.DebugPrintln("[MAIN] status LED unavailable: " + err.Error())
	}

	midiIn = NewMidiRx(0)
	if err := midiIn.Init(midiRX); err != nil {
		core.DebugPrintln("[MAIN] MIDI receiver failed: " + err.Error())
		midiIn = nil
	}

	if mode.Expression {
		if _, err := bridge.AttachExpression(NewRPADCDriver(), expressionADC, mode.ExprConfig); err != nil {
			core.DebugPrintln("[MAIN] expression pedal unavailable: " + err.Error())
		}
	}

	if mode.Knob {
		knob = newEncoderKnob(core.NewKnob(bridge.Amp(), mode.KnobPedal, mode.KnobParam, core.DefaultKnobSteps, 0.5))
	}

	bridge.Start(UpdateSystemTime())
	core.DebugPrintln("[MAIN] sparkbox " + protocol.Version + " running")

	// Start link reader goroutines
	go uartReaderLoop(ampUART, bridge.AmpTransport())
	if appUART != nil {
		go uartReaderLoop(appUART, bridge.AppTransport())
	}

	// Main loop
	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					// Clear buffers and continue
					bridge.Reset()
				}
			}()

			now := UpdateSystemTime()

			if midiIn != nil {
				midiIn.Poll(bridge.MidiInput().Write)
			}
			if knob != nil {
				knob.poll()
			}

			bridge.Tick(now)
		}()

		// Yield to other goroutines
		time.Sleep(100 * time.Microsecond)
	}
}

// uartReaderLoop moves received UART bytes into a transport. It is the only
// producer for that transport's receive pipe.
func uartReaderLoop(uart *machine.UART, link *protocol.Transport) {
	// Recover from panics to prevent a firmware crash
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			readerRestart++
			// Restart the reader loop
			time.Sleep(100 * time.Millisecond)
			go uartReaderLoop(uart, link)
		}
	}()

	var buf [64]byte
	for {
		n := uart.Buffered()
		if n > 0 {
			if n > len(buf) {
				n = len(buf)
			}
			n, _ = uart.Read(buf[:n])
			if err := link.Deliver(buf[:n]); err != nil {
				// Buffer full - error condition, the watchdog resyncs
				msgerrors++
			}
		}
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}
