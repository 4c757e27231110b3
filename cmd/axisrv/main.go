package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"goji.io"
	"goji.io/pat"

	yml "gopkg.in/yaml.v2"

	"github.com/plotterlab/axidraw/config"
	"github.com/plotterlab/axidraw/motion"
	"github.com/plotterlab/axidraw/plothttp"
	"github.com/plotterlab/axidraw/server/middleware/locker"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "axisrv.yml"
	k              = koanf.New(".")
)

// UnitSetup binds one plotter to one URL stem.
type UnitSetup struct {
	// URL is the path the unit's routes are served under, e.g. "lefty"
	// produces /lefty/pen, /lefty/pos, and so on.
	URL string `koanf:"endpoint" yaml:"endpoint"`

	// Port is the serial device node.  When empty the unit starts
	// disconnected and a client connects it via POST <stem>/connect.
	Port string `koanf:"port" yaml:"port"`
}

// Config holds the server address, the shared plotter settings, and the
// unit list.
type Config struct {
	Addr    string          `koanf:"addr" yaml:"addr"`
	Plotter config.Settings `koanf:"plotter" yaml:"plotter"`
	Units   []UnitSetup     `koanf:"units" yaml:"units"`
}

func setupconfig() {
	k.Load(structs.Provider(Config{
		Addr:    ":8000",
		Plotter: config.Defaults(),
		Units:   []UnitSetup{}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `axisrv exposes AxiDraw pen plotters over an HTTP interface.
This enables a server-client architecture, and the clients can leverage the
excellent HTTP libraries for any programming language.

Usage:
	axisrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `axisrv is amenable to configuration via its .yaml file.  For a primer on YAML,
see https://yaml.org/start.html

Without a configuration, the server will close immediately and display an
error that there are no units.

No two units can have the same endpoint.

Each unit serves the motion API under its endpoint:
	GET/POST pen        logical pen state, true=up
	GET  pen/physical   hardware pen state
	GET  pos            turtle position, display units
	GET  pos/physical   last hardware-commanded position
	POST moveto|lineto|moverel|linerel   {"x": .., "y": ..}
	POST path           {"vertices": [[x,y], ...]}
	POST home
	GET  status         per-unit status record
	GET  state          session state
	POST connect        {"str": "/dev/ttyACM0"}
	POST disconnect
	GET  limits         travel envelope

GET /endpoints lists every route of every unit.

Units with a port in the config are connected at startup; a failed connect
is logged and the unit stays reachable so a client can retry via connect.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("axisrv version %v\n", Version)
}

// buildMux makes one plotter per configured unit, mounts each on its own
// submux, and serves the route supergraph at /endpoints.
func buildMux(c Config) (*goji.Mux, error) {
	if len(c.Units) == 0 {
		return nil, fmt.Errorf("no units in config")
	}
	mcfg, err := c.Plotter.Motion()
	if err != nil {
		return nil, err
	}
	rootMux := goji.NewMux()
	supergraph := map[string][]string{}
	for _, setup := range c.Units {
		p := motion.NewPlotter()
		if err := p.Configure(mcfg); err != nil {
			return nil, err
		}
		if setup.Port != "" {
			if err := p.Connect(setup.Port); err != nil {
				log.Printf("unit %s: connect %s failed: %v", setup.URL, setup.Port, err)
			} else if p.CurrentState() != motion.Connected {
				log.Printf("unit %s: %s did not connect (status %d)", setup.URL, setup.Port, p.Status().Stopped)
			}
		}
		httper := plothttp.NewHTTPPlotter(p)
		lk := locker.New()
		locker.Inject(httper, lk)
		stem := setup.URL
		if !strings.HasPrefix(stem, "/") {
			stem = "/" + stem
		}
		if !strings.HasSuffix(stem, "/") {
			stem = stem + "/"
		}
		if _, ok := supergraph[stem]; ok {
			return nil, fmt.Errorf("duplicate endpoint %s", stem)
		}
		supergraph[stem] = httper.RT().Endpoints()
		mux := goji.SubMux()
		mux.Use(lk.Check)
		rootMux.Handle(pat.New(stem+"*"), mux)
		httper.RT().Bind(mux)
	}
	rootMux.HandleFunc(pat.Get("/endpoints"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return rootMux, nil
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	mux, err := buildMux(c)
	if err != nil {
		log.Fatal(err)
	}
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Mount("/", mux)
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, r))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
