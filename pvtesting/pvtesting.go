// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pvtesting

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/gherkin-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/homelight/polyval"
)

const verbs = "value, clone, move, release, assert, render, score, shape, reject, area, live, or limit"

// areaTolerance is the absolute error allowed when asserting areas.
const areaTolerance = 1e-5

type command interface {
	run(ctx *Context) error
}

// Assert all commands implement the command interface.
var _ = []command{
	cValue{},
	cClone{},
	cMove{},
	cRelease{},
	cAssert{},
	cRender{},
	cScore{},
	cShape{},
	cRejectValue{},
	cRejectShape{},
	cArea{},
	cLive{},
	cLimit{},
}

type cValue struct {
	v, literal string
}

type cClone struct {
	dst, src string
}

type cMove struct {
	dst, src string
}

type cRelease struct {
	name string
}

type cAssert struct {
	v, literal string
}

type cRender struct {
	v, expected string
}

type cScore struct {
	v        string
	expected int64
}

type cShape struct {
	s, kind string
	dims    []float64
}

type cRejectValue struct {
	literal string
}

type cRejectShape struct {
	kind string
	dims []float64
}

type cArea struct {
	s        string
	expected float64
}

type cLive struct {
	expected int
}

type cLimit struct {
	bytes int
}

func stepToCommand(step *gherkin.Step) (command, error) {
	parts, err := splitStep(step.Text)
	if err != nil {
		return nil, fmt.Errorf("%s: %s", step.Text, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no verb: expecting verb %s", verbs)
	}

	switch parts[0] {
	case "value":
		if len(parts) != 3 {
			return nil, fmt.Errorf("%s: expecting value <v> <literal>", step.Text)
		}
		return cValue{parts[1], parts[2]}, nil
	case "clone":
		if len(parts) != 3 {
			return nil, fmt.Errorf("%s: expecting clone <dst> <src>", step.Text)
		}
		return cClone{parts[1], parts[2]}, nil
	case "move":
		if len(parts) != 3 {
			return nil, fmt.Errorf("%s: expecting move <dst> <src>", step.Text)
		}
		return cMove{parts[1], parts[2]}, nil
	case "release":
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s: expecting release <name>", step.Text)
		}
		return cRelease{parts[1]}, nil
	case "assert":
		if len(parts) != 3 {
			return nil, fmt.Errorf("%s: expecting assert <v> <literal>", step.Text)
		}
		return cAssert{parts[1], parts[2]}, nil
	case "render":
		if len(parts) != 3 {
			return nil, fmt.Errorf(`%s: expecting render <v> "<text>"`, step.Text)
		}
		expected, err := strconv.Unquote(parts[2])
		if err != nil {
			return nil, fmt.Errorf(`%s: expecting quoted text, e.g. "Int: 5"`, step.Text)
		}
		return cRender{parts[1], expected}, nil
	case "score":
		if len(parts) != 3 {
			return nil, fmt.Errorf("%s: expecting score <v> <n>", step.Text)
		}
		expected, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: unreadable score %s", step.Text, parts[2])
		}
		return cScore{parts[1], expected}, nil
	case "shape":
		if len(parts) < 3 {
			return nil, fmt.Errorf(`%s: expecting shape <s> "<kind>" <dims...>`, step.Text)
		}
		kind, dims, err := kindAndDims(parts[2:])
		if err != nil {
			return nil, fmt.Errorf("%s: %s", step.Text, err)
		}
		return cShape{parts[1], kind, dims}, nil
	case "reject":
		if len(parts) < 2 {
			return nil, fmt.Errorf("%s: expecting reject value <literal> or reject shape \"<kind>\" <dims...>", step.Text)
		}
		switch parts[1] {
		case "value":
			if len(parts) != 3 {
				return nil, fmt.Errorf("%s: expecting reject value <literal>", step.Text)
			}
			return cRejectValue{parts[2]}, nil
		case "shape":
			if len(parts) < 3 {
				return nil, fmt.Errorf(`%s: expecting reject shape "<kind>" <dims...>`, step.Text)
			}
			kind, dims, err := kindAndDims(parts[2:])
			if err != nil {
				return nil, fmt.Errorf("%s: %s", step.Text, err)
			}
			return cRejectShape{kind, dims}, nil
		}
		return nil, fmt.Errorf("%s: expecting reject value <literal> or reject shape \"<kind>\" <dims...>", step.Text)
	case "area":
		if len(parts) != 3 {
			return nil, fmt.Errorf("%s: expecting area <s> <area>", step.Text)
		}
		expected, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: unreadable area %s", step.Text, parts[2])
		}
		return cArea{parts[1], expected}, nil
	case "live":
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s: expecting live <n>", step.Text)
		}
		expected, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%s: unreadable count %s", step.Text, parts[1])
		}
		return cLive{expected}, nil
	case "limit":
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s: expecting limit <bytes>", step.Text)
		}
		bytes, err := strconv.Atoi(parts[1])
		if err != nil || bytes < 0 {
			return nil, fmt.Errorf("%s: unreadable limit %s", step.Text, parts[1])
		}
		return cLimit{bytes}, nil
	default:
		return nil, fmt.Errorf("wrong verb '%s': expecting verb %s", parts[0], verbs)
	}
}

// splitStep splits a step on whitespace, keeping quoted strings whole.
func splitStep(text string) ([]string, error) {
	var (
		parts []string
		rest  = strings.TrimSpace(text)
	)
	for rest != "" {
		var part string
		if rest[0] == '"' || rest[0] == '`' {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("unterminated string %s", rest)
			}
			part = quoted
		} else if end := strings.IndexAny(rest, " \t"); end < 0 {
			part = rest
		} else {
			part = rest[:end]
		}
		parts = append(parts, part)
		rest = strings.TrimLeft(rest[len(part):], " \t")
	}
	return parts, nil
}

func kindAndDims(parts []string) (string, []float64, error) {
	kind, err := strconv.Unquote(parts[0])
	if err != nil {
		return "", nil, fmt.Errorf(`expecting quoted kind, e.g. "circle"`)
	}
	dims := make([]float64, 0, len(parts)-1)
	for _, part := range parts[1:] {
		dim, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return "", nil, fmt.Errorf("unreadable dimension %s", part)
		}
		dims = append(dims, dim)
	}
	return kind, dims, nil
}

func (cmd cValue) run(ctx *Context) error {
	if err := ctx.undefined(cmd.v); err != nil {
		return err
	}
	value, err := ctx.heap.NewValue(cmd.literal)
	if err != nil {
		return err
	}
	ctx.values[cmd.v] = value
	return nil
}

func (cmd cClone) run(ctx *Context) error {
	src, err := ctx.value(cmd.src)
	if err != nil {
		return err
	}
	if err := ctx.undefined(cmd.dst); err != nil {
		return err
	}
	dup, err := src.Clone()
	if err != nil {
		return err
	}
	ctx.values[cmd.dst] = dup
	return nil
}

func (cmd cMove) run(ctx *Context) error {
	src, err := ctx.value(cmd.src)
	if err != nil {
		return err
	}
	if err := ctx.undefined(cmd.dst); err != nil {
		return err
	}
	ctx.values[cmd.dst] = src.Move()
	return nil
}

func (cmd cRelease) run(ctx *Context) error {
	if value, ok := ctx.values[cmd.name]; ok {
		value.Release()
		return nil
	}
	if shape, ok := ctx.shapes[cmd.name]; ok {
		polyval.Release(shape)
		return nil
	}
	return fmt.Errorf("%s not yet created", cmd.name)
}

func (cmd cAssert) run(ctx *Context) error {
	actual, err := ctx.value(cmd.v)
	if err != nil {
		return err
	}
	expected, err := ctx.scratch.NewValue(cmd.literal)
	if err != nil {
		return err
	}
	defer expected.Release()
	if !expected.Equal(actual) {
		return fmt.Errorf("expected <%s>, was <%s>", expected, actual)
	}
	return nil
}

func (cmd cRender) run(ctx *Context) error {
	value, err := ctx.value(cmd.v)
	if err != nil {
		return err
	}
	if actual := value.String(); actual != cmd.expected {
		return fmt.Errorf("expected %q, was %q", cmd.expected, actual)
	}
	return nil
}

func (cmd cScore) run(ctx *Context) error {
	value, err := ctx.value(cmd.v)
	if err != nil {
		return err
	}
	if actual := value.Score(); actual != cmd.expected {
		return fmt.Errorf("expected score %d, was %d", cmd.expected, actual)
	}
	return nil
}

func (cmd cShape) run(ctx *Context) error {
	if err := ctx.undefined(cmd.s); err != nil {
		return err
	}
	shape, err := ctx.registry.New(cmd.kind, cmd.dims...)
	if err != nil {
		return err
	}
	ctx.shapes[cmd.s] = shape
	return nil
}

func (cmd cRejectValue) run(ctx *Context) error {
	live := ctx.heap.Live()
	value, err := ctx.heap.NewValue(cmd.literal)
	if err == nil {
		value.Release()
		return fmt.Errorf("expected %s to be rejected", cmd.literal)
	}
	if !errors.Is(err, polyval.ErrAllocationFailure) {
		return fmt.Errorf("expected an allocation failure, was %s", err)
	}
	if ctx.heap.Live() != live {
		return fmt.Errorf("rejected value left %d buffers behind", ctx.heap.Live()-live)
	}
	return nil
}

func (cmd cRejectShape) run(ctx *Context) error {
	live := ctx.heap.Live()
	shape, err := ctx.registry.New(cmd.kind, cmd.dims...)
	if err == nil {
		polyval.Release(shape)
		return fmt.Errorf("expected %s%v to be rejected", cmd.kind, cmd.dims)
	}
	if !errors.Is(err, polyval.ErrInvalidGeometry) && !errors.Is(err, polyval.ErrAllocationFailure) {
		return fmt.Errorf("expected invalid geometry, was %s", err)
	}
	if ctx.heap.Live() != live {
		return fmt.Errorf("rejected shape left %d buffers behind", ctx.heap.Live()-live)
	}
	return nil
}

func (cmd cArea) run(ctx *Context) error {
	shape, ok := ctx.shapes[cmd.s]
	if !ok {
		return fmt.Errorf("shape %s not yet created", cmd.s)
	}
	if actual := polyval.Area(shape); math.Abs(actual-cmd.expected) > areaTolerance {
		return fmt.Errorf("expected area %v, was %v", cmd.expected, actual)
	}
	return nil
}

func (cmd cLive) run(ctx *Context) error {
	if actual := ctx.heap.Live(); actual != cmd.expected {
		return fmt.Errorf("expected %d live buffers, was %d", cmd.expected, actual)
	}
	return nil
}

func (cmd cLimit) run(ctx *Context) error {
	ctx.heap.SetLimit(cmd.bytes)
	return nil
}

// Context holds all that is necessary to run a scenario.
type Context struct {
	// HeapLimit caps the bytes live on each scenario's heap. Zero means
	// unlimited. The limit verb overrides it.
	HeapLimit int

	// Logger traces the scenario heap's allocations. Defaults to a no-op
	// logger.
	Logger *zap.Logger

	// heap is a fresh heap for every scenario run, and scratch holds the
	// expected values of assertions so that they do not count against it.
	heap     *polyval.Heap
	scratch  *polyval.Heap
	registry *polyval.Registry

	values map[string]*polyval.Value
	shapes map[string]polyval.Shape
}

func (ctx *Context) value(name string) (*polyval.Value, error) {
	value, ok := ctx.values[name]
	if !ok {
		return nil, fmt.Errorf("value %s not yet created", name)
	}
	return value, nil
}

func (ctx *Context) undefined(name string) error {
	if _, ok := ctx.values[name]; ok {
		return fmt.Errorf("%s already created", name)
	}
	if _, ok := ctx.shapes[name]; ok {
		return fmt.Errorf("%s already created", name)
	}
	return nil
}

// Scenario represents a single scenario from a .feature.
type Scenario struct {
	// Name is the scenario's name.
	Name string

	source   string
	steps    []*gherkin.Step
	commands []command
}

// Run runs the scenario using the provided context. A scenario which leaves
// buffers live on its heap fails, every value and shape it creates must be
// released.
func (s Scenario) Run(ctx Context) error {
	ctx.heap = polyval.NewHeap(polyval.WithLimit(ctx.HeapLimit), polyval.WithLogger(ctx.Logger))
	ctx.scratch = polyval.NewHeap()
	ctx.registry = polyval.DefaultRegistry(ctx.heap)
	ctx.values = make(map[string]*polyval.Value)
	ctx.shapes = make(map[string]polyval.Shape)

	for i, cmd := range s.commands {
		if err := cmd.run(&ctx); err != nil {
			return multierr.Append(niceErr(s.source, s.steps[i], err), ctx.heap.Close())
		}
	}
	if err := ctx.heap.Close(); err != nil {
		return fmt.Errorf("%s: %s: %s", s.source, s.Name, err)
	}
	return nil
}

func niceErr(source string, step *gherkin.Step, err error) error {
	if step.Location == nil {
		return fmt.Errorf("%s: %s: %s", source, step.Text, err)
	}
	return fmt.Errorf("%s:%d:%d: %s: %s",
		source, step.Location.Line, step.Location.Column,
		step.Text, err)
}

// ReadFeature reads a feature in gherkin syntax, and parses out all the
// scenarios contained herein.
func ReadFeature(reader io.Reader, source string) ([]Scenario, error) {
	doc, err := gherkin.ParseGherkinDocument(reader)
	if err != nil {
		return nil, err
	}

	scenarios, err := docToScenarios(doc, source)
	if err != nil {
		return nil, err
	}

	return scenarios, nil
}

// RunFeature runs a feature test.
func RunFeature(t *testing.T, filename string, opts ...Context) {
	file, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	scenarios, err := ReadFeature(bufio.NewReader(file), filename)
	if err != nil {
		t.Fatal(err)
	}

	// context
	var ctx Context
	switch len(opts) {
	case 0:
	case 1:
		ctx = opts[0]
	default:
		t.Fatalf("too many contexts provided")
	}

	// run scenarios
	for _, scenario := range scenarios {
		scenario := scenario
		t.Run(scenario.Name, func(t *testing.T) {
			err := scenario.Run(ctx)
			if err != nil {
				t.Error(err)
			}
		})
	}
}

func docToScenarios(doc *gherkin.GherkinDocument, source string) ([]Scenario, error) {
	var (
		bgSteps    []*gherkin.Step
		bgCommands []command
		scenarios  []Scenario
	)
	if doc.Feature == nil {
		return nil, nil
	}
	for _, child := range doc.Feature.Children {
		switch childValue := child.(type) {
		case *gherkin.Scenario:
			var commands []command
			for _, step := range childValue.Steps {
				cmd, err := stepToCommand(step)
				if err != nil {
					return nil, niceErr(source, step, err)
				}
				commands = append(commands, cmd)
			}
			scenarios = append(scenarios, Scenario{
				Name:     childValue.Name,
				steps:    childValue.Steps,
				commands: commands,
			})
		case *gherkin.Background:
			for _, step := range childValue.Steps {
				cmd, err := stepToCommand(step)
				if err != nil {
					return nil, niceErr(source, step, err)
				}
				bgCommands = append(bgCommands, cmd)
			}
			bgSteps = childValue.Steps
		default:
			return nil, fmt.Errorf("%s: unknown child type %T", source, child)
		}
	}
	for i := range scenarios {
		scenarios[i].source = source
		scenarios[i].steps = append(append([]*gherkin.Step(nil), bgSteps...), scenarios[i].steps...)
		scenarios[i].commands = append(append([]command(nil), bgCommands...), scenarios[i].commands...)
	}
	return scenarios, nil
}
