package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/hhcho/crosshmm/config"
	"github.com/hhcho/crosshmm/diag"
	"github.com/hhcho/crosshmm/genofile"
	"github.com/hhcho/crosshmm/sim"
	"github.com/spf13/cobra"
	"go.dedis.ch/onet/v3/log"
)

func (o *rootOptions) simulate(cmd *cobra.Command, args []string) error {
	conf, stopWatchdog, err := o.setup()
	if err != nil {
		return err
	}
	defer stopWatchdog()

	c, err := conf.Cross(diag.Default)
	if err != nil {
		return err
	}
	params, err := conf.SimParams()
	if err != nil {
		return err
	}
	pop, err := sim.Simulate(cmd.Context(), c, params)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(o.outDir, 0755); err != nil {
		return err
	}
	path := func(name string) string { return filepath.Join(o.outDir, name) }

	data := config.Data{
		GenoBinFile:   path("geno.bin"),
		NumInds:       params.NumInd,
		NumMarkers:    len(params.RecFrac) + 1,
		MarkerPosFile: path("marker_pos.csv"),
		XChr:          pop.IsXChr,
		IndMissUB:     1,
		GenoMissUB:    1,
	}
	if err := genofile.SaveGenoToFile(data.GenoBinFile, pop.Geno); err != nil {
		return err
	}
	pos := conf.Simulation.MarkerPositions
	if err := genofile.SaveMarkerPositionFile(data.MarkerPosFile, genofile.MarkerNames(len(pos)), pos, ','); err != nil {
		return err
	}
	if pop.FounderGeno != nil {
		data.FounderGenoFile = path("founder_geno.csv")
		if err := genofile.SaveIntMatrixToFile(data.FounderGenoFile, pop.FounderGeno, ','); err != nil {
			return err
		}
	}
	if pop.CrossInfo != nil {
		data.CrossInfoFile = path("cross_info.csv")
		if err := genofile.SaveIntMatrixToFile(data.CrossInfoFile, pop.CrossInfo, ','); err != nil {
			return err
		}
	}
	if pop.IsXChr {
		sex := make([][]int, len(pop.IsFemale))
		for i, female := range pop.IsFemale {
			sex[i] = []int{0}
			if female {
				sex[i][0] = 1
			}
		}
		data.SexFile = path("sex.csv")
		if err := genofile.SaveIntMatrixToFile(data.SexFile, sex, ','); err != nil {
			return err
		}
	}

	f, err := os.Create(path("data.toml"))
	if err != nil {
		return err
	}
	defer f.Close()
	table := struct {
		Data config.Data `toml:"data"`
	}{data}
	if err := toml.NewEncoder(f).Encode(table); err != nil {
		return err
	}
	log.Lvl1("Wrote", params.NumInd, "individuals of", c.Type(), "to", o.outDir)
	return nil
}
