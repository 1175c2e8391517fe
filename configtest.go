package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"addrscope/pkg/chain"
	"addrscope/pkg/config"
	"addrscope/pkg/models"
	"addrscope/pkg/rpc"
)

// runConfigTest checks the configuration's structure and probes every RPC
// endpoint for its chain id. It returns the process exit code.
func runConfigTest(cfg config.Config, path string, jsonOut, dryRun bool) int {
	report := models.TestReport{
		ConfigPath:     path,
		ValidStructure: true,
		DryRun:         dryRun,
		ChainCount:     len(cfg.Chains),
	}
	say := func(format string, args ...interface{}) {
		if !jsonOut {
			fmt.Printf(format, args...)
		}
	}
	emit := func() {
		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(report)
		}
	}

	say("Testing configuration at: %s\n", path)

	if err := cfg.Validate(); err != nil {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, err.Error())
		say("Error: %v\n", err)
	}
	for i, ch := range cfg.Chains {
		if strings.TrimSpace(ch.Name) == "" {
			msg := fmt.Sprintf("Chain at index %d has no name.", i)
			report.StructureErrors = append(report.StructureErrors, msg)
			report.ValidStructure = false
			say("Error: %s\n", msg)
		}
	}
	if !report.ValidStructure {
		emit()
		return 1
	}

	say("Found %d chains.\n", len(cfg.Chains))

	timeout := cfg.Global.RequestTimeout()
	configUpdated := false
	for i := range cfg.Chains {
		ch := &cfg.Chains[i]
		cResult := models.ChainResult{
			Name:          ch.Name,
			Family:        ch.Family.Label(),
			ConfigChainID: ch.ChainID,
		}
		say("Testing Chain: %s (%s)\n", ch.Name, ch.Family.Label())

		if !chain.IsEVM(ch.Family) || len(ch.RPCURLs) == 0 {
			say("  no RPC endpoints to probe\n")
			report.Chains = append(report.Chains, cResult)
			continue
		}

		var observed *big.Int
		for _, url := range ch.RPCURLs {
			rResult := models.RPCResult{URL: url}
			say("  RPC: %s ... ", url)

			id, err := rpc.ProbeChainID(context.Background(), url, timeout)
			if err != nil {
				rResult.Status = "error"
				rResult.Error = err.Error()
				say("Failed: %v\n", err)
				cResult.RPCs = append(cResult.RPCs, rResult)
				continue
			}

			rResult.Status = "ok"
			rResult.ChainID = id.Int64()
			say("OK (ChainID: %s)", id.String())
			if observed == nil {
				observed = id
				cResult.ObservedChainID = id.Int64()
			} else if observed.Cmp(id) != 0 {
				say(" - WARNING: ChainID mismatch with previous RPC (%s)", observed.String())
				cResult.Inconsistent = true
			}

			switch {
			case ch.ChainID == 0:
				ch.ChainID = id.Int64()
				configUpdated = true
				cResult.ChainIDUpdated = true
				say(" - UPDATED CONFIG")
				if dryRun {
					say(" (DRY RUN)")
				}
			case id.Cmp(big.NewInt(ch.ChainID)) != 0:
				rResult.Error = fmt.Sprintf("Mismatch! Expected %d", ch.ChainID)
				say(" - MISMATCH! Expected %d", ch.ChainID)
			default:
				say(" - Verified")
			}
			say("\n")
			cResult.RPCs = append(cResult.RPCs, rResult)
		}
		if cResult.Inconsistent {
			report.InconsistentChains = append(report.InconsistentChains, ch.Name)
		}
		report.Chains = append(report.Chains, cResult)
	}

	if len(report.InconsistentChains) > 0 {
		say("\nWARNING: Inconsistent RPCs detected!\n")
		say("The following chains have RPCs returning conflicting Chain IDs:\n")
		for _, name := range report.InconsistentChains {
			say(" - %s\n", name)
		}
	}

	if configUpdated {
		report.ConfigUpdated = true
		say("\nUpdating configuration with fetched Chain IDs...\n")
		if dryRun {
			say("Dry run enabled: Configuration NOT saved.\n")
		} else if err := config.SaveConfig(cfg, path); err != nil {
			report.SaveError = err.Error()
			say("Failed to save config: %v\n", err)
		} else {
			say("Configuration saved successfully.\n")
		}
	}

	emit()
	return 0
}
