package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"vibedocs/internal/checkpoint"
	"vibedocs/internal/gateway/api"
	"vibedocs/internal/gatewayclient"
	"vibedocs/internal/generation"
	"vibedocs/internal/logging"
	"vibedocs/internal/pipeline"
	"vibedocs/internal/settings"
)

type globalFlags struct {
	gateway    string
	checkpoint string
	settings   string
	websocket  bool
	verbose    bool
}

type commandContext struct {
	flags *globalFlags

	settingsOnce sync.Once
	settings     *settings.Service
	settingsErr  error

	storeOnce sync.Once
	store     checkpoint.Store
	storeErr  error

	loggerOnce sync.Once
	logger     *log.Logger
	logCloser  io.Closer
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) gatewayURL() string {
	return firstNonEmpty(c.flags.gateway, os.Getenv("VIBEDOCS_GATEWAY"), defaultGateway)
}

func (c *commandContext) settingsService() (*settings.Service, error) {
	c.settingsOnce.Do(func() {
		path := firstNonEmpty(c.flags.settings, os.Getenv("VIBEDOCS_SETTINGS"), defaultSettings)
		file, err := settings.NewTOMLFile(path)
		if err != nil {
			c.settingsErr = err
			return
		}
		c.settings, c.settingsErr = settings.New(file)
	})
	return c.settings, c.settingsErr
}

func (c *commandContext) checkpointStore() (checkpoint.Store, error) {
	c.storeOnce.Do(func() {
		location := firstNonEmpty(c.flags.checkpoint, os.Getenv("VIBEDOCS_CHECKPOINT"), defaultCheckpoint)
		if strings.HasPrefix(location, "~") {
			expanded, err := settings.ExpandPath(location)
			if err != nil {
				c.storeErr = err
				return
			}
			location = expanded
		}
		c.store, c.storeErr = checkpoint.Open(location)
	})
	return c.store, c.storeErr
}

func (c *commandContext) log(stderr io.Writer) *log.Logger {
	c.loggerOnce.Do(func() {
		file := strings.TrimSpace(os.Getenv("VIBEDOCS_LOG_FILE"))
		if !c.flags.verbose && file == "" {
			c.logger = logging.Discard()
			return
		}
		out := stderr
		if !c.flags.verbose {
			out = io.Discard
		}
		logger, closer, err := logging.New(logging.Config{File: file, Stderr: out})
		if err != nil {
			fmt.Fprintf(stderr, "log file disabled: %v\n", err)
			c.logger = log.New(out, "", log.LstdFlags)
			return
		}
		c.logger, c.logCloser = logger, closer
	})
	return c.logger
}

func (c *commandContext) client() *gatewayclient.Client {
	return gatewayclient.New(c.gatewayURL())
}

func (c *commandContext) driver(store checkpoint.Store, stderr io.Writer, onEvent func(*generation.Machine, pipeline.Event)) *generation.Driver {
	var streamer generation.Streamer = c.client()
	if c.flags.websocket {
		streamer = wsStreamer{client: c.client()}
	}
	return generation.NewDriver(streamer, store, generation.DriverOptions{
		Logger:  c.log(stderr),
		OnEvent: onEvent,
	})
}

// Close releases the checkpoint store and the log file.
func (c *commandContext) Close() error {
	var errs []error
	if closer, ok := c.store.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if c.logCloser != nil {
		errs = append(errs, c.logCloser.Close())
	}
	return errors.Join(errs...)
}

// wsStreamer sends generation requests over the websocket endpoint.
type wsStreamer struct {
	client *gatewayclient.Client
}

func (s wsStreamer) Generate(ctx context.Context, body api.GenerateBody, fn gatewayclient.Handler) error {
	return s.client.Stream(ctx, api.StreamFrame{RegenerateBody: api.RegenerateBody{GenerateBody: body}}, fn)
}

func (s wsStreamer) Regenerate(ctx context.Context, body api.RegenerateBody, fn gatewayclient.Handler) error {
	return s.client.Stream(ctx, api.StreamFrame{Mode: api.ModeRegenerate, RegenerateBody: body}, fn)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
