package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ghodss/yaml"

	"github.com/clinia/emulator-console/errorx"
	"github.com/clinia/emulator-console/pubsubx"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

type snapshotView struct {
	Emulator string                  `json:"emulator,omitempty"`
	Loaded   bool                    `json:"loaded"`
	Version  uint64                  `json:"version"`
	Topics   []pubsubx.TopicResource `json:"topics"`
}

type subscriptionsView struct {
	Topic         string   `json:"topic"`
	Subscriptions []string `json:"subscriptions"`
}

type mutationView struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Target string `json:"target"`
	State  string `json:"state"`
	Error  string `json:"error,omitempty"`
}

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case outputText, outputJSON, outputYAML:
		return &printer{w: w, format: format}, nil
	case "":
		return &printer{w: w, format: outputText}, nil
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown output format %q, expected one of text, json or yaml", format)
	}
}

func (p *printer) structured(v interface{}) error {
	var (
		out []byte
		err error
	)
	if p.format == outputYAML {
		out, err = yaml.Marshal(v)
	} else {
		out, err = json.MarshalIndent(v, "", "  ")
		out = append(out, '\n')
	}
	if err != nil {
		return errorx.InternalErrorf("unable to render the output").WithOriginal(err)
	}
	_, err = p.w.Write(out)
	return err
}

func (p *printer) Snapshot(s pubsubx.Snapshot) error {
	topics := s.Topics.Clone()
	if topics == nil {
		topics = pubsubx.TopicCollection{}
	}

	if p.format != outputText {
		view := snapshotView{Loaded: s.Loaded, Version: s.Version, Topics: topics}
		if !s.IsUnset() {
			view.Emulator = s.Config.String()
		}
		return p.structured(view)
	}

	if s.IsUnset() {
		_, err := fmt.Fprintln(p.w, "no pubsub emulator configured")
		return err
	}

	fmt.Fprintf(p.w, "emulator: %s\n", s.Config)
	if !s.Loaded {
		_, err := fmt.Fprintln(p.w, "topics not loaded")
		return err
	}
	if len(topics) == 0 {
		_, err := fmt.Fprintln(p.w, "no topics")
		return err
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHORT NAME\tNAME")
	for _, t := range topics {
		fmt.Fprintf(tw, "%s\t%s\n", t.ShortName, t.FullName)
	}
	return tw.Flush()
}

func (p *printer) Subscriptions(topic string, subscriptions []string) error {
	if subscriptions == nil {
		subscriptions = []string{}
	}

	if p.format != outputText {
		return p.structured(subscriptionsView{Topic: topic, Subscriptions: subscriptions})
	}

	if len(subscriptions) == 0 {
		_, err := fmt.Fprintf(p.w, "no subscriptions on %s\n", topic)
		return err
	}
	for _, s := range subscriptions {
		if _, err := fmt.Fprintln(p.w, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) Mutation(m *pubsubx.Mutation) error {
	view := mutationView{
		ID:     m.ID,
		Kind:   m.Kind.String(),
		Target: m.Target,
		State:  m.State().String(),
	}
	if err := m.Err(); err != nil {
		view.Error = err.Error()
	}

	if p.format != outputText {
		return p.structured(view)
	}

	if view.Error != "" {
		_, err := fmt.Fprintf(p.w, "%s %s: %s: %s\n", view.Kind, view.Target, view.State, view.Error)
		return err
	}
	_, err := fmt.Fprintf(p.w, "%s %s: %s\n", view.Kind, view.Target, view.State)
	return err
}
