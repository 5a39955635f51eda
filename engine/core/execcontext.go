package core

// ServicesKey is the reserved context key under which process-scoped
// collaborators (repositories, clients, publishers) are carried through an
// ExecutionContext. Unlike every other key, the value under ServicesKey is
// never deep-copied and never serialized: it is shared by reference across
// every node of a run.
const ServicesKey = "services"

// CloneExecutionContext returns a deep copy of ctx, except for the
// ServicesKey entry (if present) which is carried over by reference. This
// mirrors DeepCopy's behavior for Input/Output but adds the services
// carve-out required by the DAG executor when it branches context for
// concurrent children.
func CloneExecutionContext(ctx map[string]any) (map[string]any, error) {
	if ctx == nil {
		return make(map[string]any), nil
	}
	services, hadServices := ctx[ServicesKey]
	toCopy := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if k == ServicesKey {
			continue
		}
		toCopy[k] = v
	}
	copied, err := deepCopyMap(toCopy)
	if err != nil {
		return nil, err
	}
	if hadServices {
		copied[ServicesKey] = services
	}
	return copied, nil
}

// StripServices returns a shallow copy of ctx with the ServicesKey entry
// removed. Call this before JSON-serializing an ExecutionContext (e.g. to
// persist a node result or log a snapshot) since service handles are not
// serializable and must never cross a process boundary.
func StripServices(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if k == ServicesKey {
			continue
		}
		out[k] = v
	}
	return out
}
