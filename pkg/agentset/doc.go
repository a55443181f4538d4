// Package agentset loads agent sets from YAML or JSON files and builds them into a
// registry, a router and default orchestrators.
//
// A file lists the agents and, optionally, how to compose them:
//
//	agents:
//	  - name: triage
//	    delegate_to: billing
//	    reason: billing issue
//	  - name: billing
//	    answer: "resolved: {{input}}"
//	  - name: support
//	    type: llm
//	    profile: default
//	    model: claude-sonnet-4-5
//	    handoff_targets: [billing]
//	handoff:
//	  start: triage
//	  max_depth: 5
//	parallel:
//	  agents: [billing, support]
//	  strategy: merge
//
// Documents are checked against Schema before decoding, then cross-references are
// validated. Scripted agents are deterministic and need no credentials, which makes a
// file usable for dry runs of a routing topology.
package agentset
