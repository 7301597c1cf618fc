// Package gst is the GStreamer capture backend.
//
// Pipeline structure:
//
//	uridecodebin → videoconvert → capsfilter(RGBA) → appsink
//
// uridecodebin picks rtspsrc or souphttpsrc from the URI scheme and exposes
// decoded pads dynamically; they are linked in the pad-added callback.
package gst

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/MrSnakeDoc/lookout/internal/logger"
)

const rgbaCaps = "video/x-raw,format=RGBA"

var initOnce sync.Once

func initGStreamer() {
	initOnce.Do(func() { gst.Init(nil) })
}

// elements holds what a session needs after construction.
type elements struct {
	pipeline *gst.Pipeline
	sink     *app.Sink
}

// buildPipeline creates the pipeline in NULL state. Caller sets it to PLAYING.
func buildPipeline(uri string, log logger.Logger) (*elements, error) {
	initGStreamer()

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("uridecodebin")
	if err != nil {
		return nil, fmt.Errorf("failed to create uridecodebin: %w", err)
	}
	if err := src.SetProperty("uri", uri); err != nil {
		return nil, fmt.Errorf("failed to set source uri: %w", err)
	}

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}

	filter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	if err := filter.SetProperty("caps", gst.NewCapsFromString(rgbaCaps)); err != nil {
		return nil, fmt.Errorf("failed to set caps: %w", err)
	}

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	// No clock sync: frames are consumed as soon as they are decoded.
	_ = sink.SetProperty("sync", false)
	_ = sink.SetProperty("drop", true)

	if err := pipeline.AddMany(src, convert, filter, sink.Element); err != nil {
		return nil, fmt.Errorf("failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(convert, filter, sink.Element); err != nil {
		return nil, fmt.Errorf("failed to link elements: %w", err)
	}

	if _, err := src.Connect("pad-added", func(self *gst.Element, pad *gst.Pad) {
		onPadAdded(pad, convert, log)
	}); err != nil {
		return nil, fmt.Errorf("failed to connect pad-added: %w", err)
	}

	return &elements{pipeline: pipeline, sink: sink}, nil
}

// onPadAdded links the first video pad uridecodebin exposes. Audio pads are ignored.
func onPadAdded(pad *gst.Pad, convert *gst.Element, log logger.Logger) {
	if caps := pad.GetCurrentCaps(); caps != nil && caps.GetSize() > 0 {
		if name := caps.GetStructureAt(0).Name(); !strings.HasPrefix(name, "video/") {
			log.Debug("gst: ignoring non-video pad", logger.String("caps", name))
			return
		}
	}

	sinkPad := convert.GetStaticPad("sink")
	if sinkPad == nil {
		log.Error("gst: videoconvert has no sink pad")
		return
	}
	if sinkPad.IsLinked() {
		return
	}
	if ret := pad.Link(sinkPad); ret != gst.PadLinkOK {
		log.Error("gst: failed to link decoded pad",
			logger.String("pad", pad.GetName()),
			logger.Int("result", int(ret)))
		return
	}
	log.Debug("gst: decoded pad linked", logger.String("pad", pad.GetName()))
}

// destroy moves the pipeline to NULL, releasing sockets and decoder state.
func (e *elements) destroy() error {
	if e == nil || e.pipeline == nil {
		return nil
	}
	if err := e.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}
