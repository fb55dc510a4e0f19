// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// Stage identifies one of DPAM's pipeline stages by its spec.md number.
type Stage int

const (
	PREPARE Stage = iota + 1
	HHSEARCH
	FOLDSEEK
	FOLDSEEK_FILTER
	MAP_ECOD
	DALI_CANDIDATES
	ITERATIVE_DALI
	ANALYSE_DALI
	GET_SUPPORT
	FILTER_GOOD_DOMAINS
	SSE
	DISORDER
	PARSE_DOMAINS
	_RESERVED_STAGE_14 // intentionally unused, historical; see spec.md §4.D, §9 Open Question 1
	PREPARE_DOMASS
	RUN_DOMASS
	CONFIDENT_PREDICTIONS
	MAP_CONFIDENT
	MERGE_CANDIDATES
	EXTRACT_DOMAIN_PDBS
	CONNECTIVITY
	MERGE
	CLASSIFY
	INTEGRATE
	PDB_EMISSION // stage 25, explicit no-op
)

// Names maps a Stage to its spec.md name.
var Names = map[Stage]string{
	PREPARE:               "PREPARE",
	HHSEARCH:              "HHSEARCH",
	FOLDSEEK:              "FOLDSEEK",
	FOLDSEEK_FILTER:       "FOLDSEEK_FILTER",
	MAP_ECOD:              "MAP_ECOD",
	DALI_CANDIDATES:       "DALI_CANDIDATES",
	ITERATIVE_DALI:        "ITERATIVE_DALI",
	ANALYSE_DALI:          "ANALYSE_DALI",
	GET_SUPPORT:           "GET_SUPPORT",
	FILTER_GOOD_DOMAINS:   "FILTER_GOOD_DOMAINS",
	SSE:                   "SSE",
	DISORDER:              "DISORDER",
	PARSE_DOMAINS:         "PARSE_DOMAINS",
	PREPARE_DOMASS:        "PREPARE_DOMASS",
	RUN_DOMASS:            "RUN_DOMASS",
	CONFIDENT_PREDICTIONS: "CONFIDENT_PREDICTIONS",
	MAP_CONFIDENT:         "MAP_CONFIDENT",
	MERGE_CANDIDATES:      "MERGE_CANDIDATES",
	EXTRACT_DOMAIN_PDBS:   "EXTRACT_DOMAIN_PDBS",
	CONNECTIVITY:          "CONNECTIVITY",
	MERGE:                 "MERGE",
	CLASSIFY:              "CLASSIFY",
	INTEGRATE:             "INTEGRATE",
	PDB_EMISSION:          "PDB_EMISSION",
}

func (s Stage) String() string {
	if n, ok := Names[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// CriticalStages are the stages whose failure halts the per-protein
// runner outright (spec.md §4.F).
var CriticalStages = map[Stage]bool{
	HHSEARCH:       true,
	FOLDSEEK:       true,
	ITERATIVE_DALI: true,
}

// Ordered is the dispatch order used by the per-protein runner and the
// batch orchestrator's outer loop: stages 1..13, 15..24. Stage 14 is
// intentionally absent (reserved, no kernel) and stage 25 is handled by
// the runner directly as a no-op, not dispatched through this list.
var Ordered = []Stage{
	PREPARE, HHSEARCH, FOLDSEEK, FOLDSEEK_FILTER, MAP_ECOD, DALI_CANDIDATES,
	ITERATIVE_DALI, ANALYSE_DALI, GET_SUPPORT, FILTER_GOOD_DOMAINS, SSE,
	DISORDER, PARSE_DOMAINS,
	PREPARE_DOMASS, RUN_DOMASS, CONFIDENT_PREDICTIONS, MAP_CONFIDENT,
	MERGE_CANDIDATES, EXTRACT_DOMAIN_PDBS, CONNECTIVITY, MERGE, CLASSIFY,
	INTEGRATE,
}
