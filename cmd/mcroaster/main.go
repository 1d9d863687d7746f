// Command mcroaster is the controller core's process entrypoint: load
// configuration, open the hardware and transport layers, and run the
// tick loop until a shutdown signal arrives. Structured the way the
// teacher's service main does it — load config, bring up collaborators,
// signal.Notify, one blocking loop — generalized from an event-driven
// select loop to a ticker-driven real-time loop (spec §2, §5).
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	"github.com/Michael-Swartz/McRoaster/pkg/config"
	"github.com/Michael-Swartz/McRoaster/pkg/hardware"
	"github.com/Michael-Swartz/McRoaster/pkg/logging"
	"github.com/Michael-Swartz/McRoaster/pkg/loop"
	"github.com/Michael-Swartz/McRoaster/pkg/statemachine"
	"github.com/Michael-Swartz/McRoaster/pkg/transport"
)

const tickInterval = time.Millisecond // ~1 kHz target, per spec §2

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("warning: error loading configuration: %v. continuing with defaults.", err)
	}

	internalLog := logging.Setup(os.Getenv("MCROASTER_DEBUG") != "")

	port, err := hardware.NewPeriph(hardware.PeriphConfig{
		FanPin:            "GPIO17",
		SSRPin:            "GPIO27",
		ThermocoupleSPI:   "SPI0.0",
		ThermistorI2C:     "I2C1",
		ThermistorAddr:    0x48,
		ThermistorChannel: 0,
		PWMPeriod:         25 * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("fatal: hardware initialization failed: %v", err)
	}
	defer port.Close()

	serialPort, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Transport.SerialPort,
		Baud:        cfg.Transport.BaudRate,
		ReadTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("fatal: failed to open transport serial port %s: %v", cfg.Transport.SerialPort, err)
	}
	defer serialPort.Close()

	writer := transport.NewWriter(serialPort)
	internalLog.AddHook(logging.NewWireHook(writer, logrus.WarnLevel))

	reader := transport.NewReader(serialPort, cfg.Transport.MaxLineBytes)
	sink := transport.NewControllerSink(writer)
	ctrl := statemachine.New(cfg, port, sink)

	shutdown := config.NewAtomicBool(false)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		internalLog.WithField("source", "main").Infof("received signal %v, shutting down", sig)
		shutdown.Store(true)
	}()

	internalLog.WithField("source", "main").Info("mcroaster controller core starting")

	l := loop.New(cfg, port, ctrl, reader, writer, shutdown)
	l.Run(tickInterval)

	internalLog.WithField("source", "main").Info("mcroaster controller core stopped")
}
