package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/theckman/yacspin"

	"github.com/plotterlab/axidraw/config"
	"github.com/plotterlab/axidraw/dispatch"
	"github.com/plotterlab/axidraw/ebb"
	"github.com/plotterlab/axidraw/geom"
	"github.com/plotterlab/axidraw/motion"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "axicli.yml"
)

func root() {
	str := `axicli drives AxiDraw pen plotters from the command line.

Usage:
	axicli <command> [flags]

Commands:
	list            show attached plotters
	plot <file>     plot a vertex file
	name            get or set a board nickname
	pen             raise or lower the pen
	home            walk the pen home
	version`
	fmt.Println(str)
}

func list() {
	ports, err := ebb.USBLister{}.List()
	if err != nil {
		log.Fatal(err)
	}
	if len(ports) == 0 {
		fmt.Println("no plotters found")
		return
	}
	for _, p := range ports {
		line := p.Path + "\t" + p.Description
		if p.Nickname != "" {
			line += "\t(" + p.Nickname + ")"
		}
		fmt.Println(line)
	}
}

// loadPaths reads a vertex file.  A line with two numbers is a polyline
// vertex; a line with eight is a cubic bezier (endpoint, two control
// points, endpoint) flattened to chords.  Blank lines separate paths, #
// starts a comment.  A simplify tolerance of zero keeps every vertex.
func loadPaths(path string, flatness, simplifyTol float64) ([][]geom.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var paths [][]geom.Point
	var cur []geom.Point
	flush := func() {
		if simplifyTol > 0 {
			cur = geom.Simplify(cur, simplifyTol)
		}
		if len(cur) >= 2 {
			paths = append(paths, cur)
		}
		cur = nil
	}
	sc := bufio.NewScanner(f)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			flush()
			continue
		}
		vals := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %v", path, lineno, err)
			}
			vals[i] = v
		}
		switch len(vals) {
		case 2:
			cur = append(cur, geom.Point{X: vals[0], Y: vals[1]})
		case 8:
			c := geom.Cubic{
				P0: geom.Point{X: vals[0], Y: vals[1]},
				P1: geom.Point{X: vals[2], Y: vals[3]},
				P2: geom.Point{X: vals[4], Y: vals[5]},
				P3: geom.Point{X: vals[6], Y: vals[7]},
			}
			pts := geom.FlattenCubic([]geom.Cubic{c}, flatness)
			if len(cur) > 0 && cur[len(cur)-1] == pts[0] {
				pts = pts[1:]
			}
			cur = append(cur, pts...)
		default:
			return nil, fmt.Errorf("%s:%d: want 2 or 8 numbers, got %d", path, lineno, len(vals))
		}
	}
	flush()
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: no paths (need at least two vertices per path)", path)
	}
	return paths, nil
}

// fitPaths maps the drawing's bounding box onto the travel area with a
// uniform, centered scale, in display units.
func fitPaths(paths [][]geom.Point, s config.Settings) ([][]geom.Point, error) {
	mcfg, err := s.Motion()
	if err != nil {
		return nil, err
	}
	travel, ok := motion.Travel(mcfg.Model)
	if !ok {
		return nil, fmt.Errorf("unknown model %d", mcfg.Model)
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, path := range paths {
		for _, p := range path {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
	}
	vb := fmt.Sprintf("%g %g %g %g", minX, minY, maxX-minX, maxY-minY)
	scale := mcfg.Units.PerInch()
	vp := geom.ViewportTransform(vb, "xMidYMid meet", travel.Max.X*scale, travel.Max.Y*scale)
	out := make([][]geom.Point, len(paths))
	for i, path := range paths {
		q := make([]geom.Point, len(path))
		for j, p := range path {
			q[j] = vp.Apply(p)
		}
		out[i] = q
	}
	return out, nil
}

// commonFlags are the override flags shared by the hardware commands.
type commonFlags struct {
	fs      *flag.FlagSet
	cfgFile *string
	port    *string
	policy  *string
	model   *int
	units   *string
	speed   *float64
	noClip  *bool
}

func newCommonFlags(name string) *commonFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &commonFlags{
		fs:      fs,
		cfgFile: fs.String("config", ConfigFileName, "yaml config file"),
		port:    fs.String("port", "", "device node or nickname"),
		policy:  fs.String("policy", "", "port policy: first, port, all"),
		model:   fs.Int("model", 0, "hardware model 1-4"),
		units:   fs.String("units", "", "display units: in, cm, mm"),
		speed:   fs.Float64("speed", 0, "pen-down speed, units/second"),
		noClip:  fs.Bool("no-clip-lift", false, "do not raise the pen at clipped boundaries"),
	}
}

// settings layers the config file under the flags that were actually set.
func (c *commonFlags) settings() config.Settings {
	over := config.Overrides{}
	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			over.Port = c.port
		case "policy":
			over.PortPolicy = c.policy
		case "model":
			over.Model = c.model
		case "units":
			over.Units = c.units
		case "speed":
			over.SpeedPenDown = c.speed
		case "no-clip-lift":
			v := !*c.noClip
			over.AutoClipLift = &v
		}
	})
	s, err := config.Load(*c.cfgFile, over)
	if err != nil {
		log.Fatal(err)
	}
	return s
}

func dispatcher(s config.Settings) (*dispatch.Dispatcher, dispatch.Selection) {
	mcfg, err := s.Motion()
	if err != nil {
		log.Fatal(err)
	}
	sel, err := s.Selection()
	if err != nil {
		log.Fatal(err)
	}
	intr := &motion.Interrupt{}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		intr.Trip()
	}()
	return &dispatch.Dispatcher{Config: mcfg, Interrupt: intr}, sel
}

func spinner(suffix string) *yacspin.Spinner {
	s, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[14],
		Suffix:          " " + suffix,
		SuffixAutoColon: true,
		StopCharacter:   "done",
		StopColors:      []string{"fgGreen"},
	})
	if err != nil {
		log.Fatal(err)
	}
	return s
}

func plot(args []string) {
	flags := newCommonFlags("plot")
	flatness := flags.fs.Float64("flatness", 1e-3, "max chord deviation when flattening curves")
	simplify := flags.fs.Float64("simplify", 0, "drop vertices within this distance of the chord, 0 keeps all")
	fit := flags.fs.Bool("fit", false, "scale and center the drawing onto the travel area")
	flags.fs.Parse(args)
	if flags.fs.NArg() != 1 {
		log.Fatal("plot needs exactly one vertex file")
	}
	paths, err := loadPaths(flags.fs.Arg(0), *flatness, *simplify)
	if err != nil {
		log.Fatal(err)
	}
	s := flags.settings()
	if *fit {
		paths, err = fitPaths(paths, s)
		if err != nil {
			log.Fatal(err)
		}
	}
	d, sel := dispatcher(s)
	spin := spinner("plotting")
	spin.Start()
	results, err := d.Run(sel, func(p *motion.Plotter, port ebb.PortInfo) error {
		for _, path := range paths {
			if err := p.CheckStop(); err != nil {
				return err
			}
			if p.CurrentState() != motion.Connected {
				break
			}
			if err := p.DrawPath(path); err != nil {
				return err
			}
		}
		return p.WalkHome()
	})
	if err != nil {
		spin.StopFailMessage(err.Error())
		spin.StopFail()
		os.Exit(1)
	}
	spin.Stop()
	for _, r := range results {
		role := "secondary"
		if r.Primary {
			role = "primary"
		}
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		} else if r.Status.Stopped != motion.StoppedNone {
			status = fmt.Sprintf("stopped (%d)", r.Status.Stopped)
		}
		fmt.Printf("%s\t%s\t%s\n", r.Port.Path, role, status)
	}
}

func name(args []string) {
	flags := newCommonFlags("name")
	newName := flags.fs.String("set", "", "store this nickname on the board")
	flags.fs.Parse(args)
	s := flags.settings()
	if s.Port == "" {
		log.Fatal("name needs -port")
	}
	dev := ebb.NewDevice(s.Port)
	if err := dev.Open(); err != nil {
		log.Fatal(err)
	}
	defer dev.Close()
	if *newName != "" {
		if err := dev.SetNickname(*newName); err != nil {
			log.Fatal(err)
		}
		dev.Reboot()
		fmt.Println("nickname stored, board rebooting")
		return
	}
	nick, err := dev.Nickname()
	if err != nil {
		log.Fatal(err)
	}
	if nick == "" {
		fmt.Println("(no nickname set)")
		return
	}
	fmt.Println(nick)
}

func pen(args []string) {
	flags := newCommonFlags("pen")
	up := flags.fs.Bool("up", false, "raise the pen")
	down := flags.fs.Bool("down", false, "lower the pen")
	flags.fs.Parse(args)
	if *up == *down {
		log.Fatal("pen needs exactly one of -up or -down")
	}
	d, sel := dispatcher(flags.settings())
	_, err := d.Run(sel, func(p *motion.Plotter, port ebb.PortInfo) error {
		if *up {
			return p.PenUp()
		}
		return p.PenDown()
	})
	if err != nil {
		log.Fatal(err)
	}
}

func home(args []string) {
	flags := newCommonFlags("home")
	flags.fs.Parse(args)
	d, sel := dispatcher(flags.settings())
	_, err := d.Run(sel, func(p *motion.Plotter, port ebb.PortInfo) error {
		return p.WalkHome()
	})
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("axicli version %v\n", Version)
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	cmd := strings.ToLower(args[1])
	rest := args[2:]
	switch cmd {
	case "list":
		list()
	case "plot":
		plot(rest)
	case "name":
		name(rest)
	case "pen":
		pen(rest)
	case "home":
		home(rest)
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
