// Package intent defines the resolver and planner capabilities the
// orchestrator depends on. Both are interfaces so a production system can
// inject a model-backed implementation; the bundled rule-based versions score
// keyword rules loaded from YAML and keep the pipeline runnable end to end
// without any external service.
package intent
