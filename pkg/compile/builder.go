package compile

import (
	"fmt"
	"log/slog"
	goruntime "runtime"

	"golang.org/x/sync/errgroup"

	"github.com/robot9706/corert/internal/graph"
	"github.com/robot9706/corert/internal/metadata"
	"github.com/robot9706/corert/pkg/artifact"
	"github.com/robot9706/corert/pkg/imports"
)

// Options configures a build.
type Options struct {
	// Workers bounds parallel method compilation and parallel dependency
	// discovery. Zero or less means NumCPU.
	Workers int
}

// Builder runs one compilation session: compile, analyze, assign slots.
// The artifact store and node factory are owned by the session and
// discarded with it; nothing is shared between builds.
type Builder struct {
	opts    Options
	store   *artifact.Store
	factory *graph.Factory
}

func NewBuilder(opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = goruntime.NumCPU()
	}
	store := artifact.NewStore()
	return &Builder{
		opts:    opts,
		store:   store,
		factory: graph.NewFactory(store),
	}
}

// Build compiles the manifest's methods, computes the reachable node set
// from its roots, and assigns import table slots in final emission order.
func (b *Builder) Build(m *Manifest) (*Emission, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	rootKeys, err := b.compileMethods(m)
	if err != nil {
		return nil, err
	}
	slog.Debug("compiled method bodies", "module", m.Module, "methods", b.store.Size())

	roots := make([]graph.Node, 0, len(rootKeys))
	for _, key := range rootKeys {
		code, err := b.factory.MethodCode(key)
		if err != nil {
			return nil, fmt.Errorf("collecting root %s: %w", key, err)
		}
		roots = append(roots, code)
	}

	result, err := graph.NewAnalyzer(b.factory, b.opts.Workers).Analyze(roots)
	if err != nil {
		return nil, fmt.Errorf("dependency analysis: %w", err)
	}

	table := imports.NewTable()
	slotIndex, err := assignSlots(table, result.Nodes)
	if err != nil {
		return nil, fmt.Errorf("import table assignment: %w", err)
	}
	slog.Debug("assigned import slots", "module", m.Module, "slots", table.Len())

	return &Emission{
		Module:    m.Module,
		Nodes:     result.Nodes,
		Table:     table,
		SlotIndex: slotIndex,
		Factory:   b.factory,
	}, nil
}

// compileMethods produces artifacts and call-site registrations for every
// manifest method on parallel workers, and returns the root keys in stable
// manifest order. Workers write to their own index of a pre-sized slice,
// so the loop needs no locks; the store and factory registrations are
// insert-if-absent maps built for concurrent use.
func (b *Builder) compileMethods(m *Manifest) ([]metadata.MethodKey, error) {
	rootSlots := make([]*metadata.MethodKey, len(m.Methods))

	var wg errgroup.Group
	wg.SetLimit(b.opts.Workers)
	for idx, method := range m.Methods {
		wg.Go(func() error {
			key := method.Key(m.Module)

			body := []byte(method.Body)
			if len(body) == 0 {
				// Deterministic stub so checksums are stable across runs.
				body = []byte(key.String())
			}
			if err := b.store.Add(artifact.Compile(key, body, method.GCInfoSize)); err != nil {
				return err
			}

			ctx := metadata.SignatureContext{Module: m.Module, TypeParams: method.TypeParams}
			calls := make([]graph.CallSite, 0, len(method.Calls))
			for _, call := range method.Calls {
				target := call.targetKey(m.Module)
				calls = append(calls, graph.CallSite{
					Target:       target,
					Kind:         call.fixupKind(),
					Context:      ctx,
					UnboxingStub: call.UnboxingStub,
					Local:        target.Module == m.Module,
				})
			}
			b.factory.DefineMethod(key, calls)

			if method.Root {
				rootSlots[idx] = &key
			}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	var roots []metadata.MethodKey
	for _, key := range rootSlots {
		if key != nil {
			roots = append(roots, *key)
		}
	}
	return roots, nil
}

// assignSlots feeds the delay-load nodes of the final sorted list to the
// import table, in list order, and maps each slot-owning node to its index.
func assignSlots(table *imports.Table, nodes []graph.Node) (map[graph.Node]int, error) {
	var entries []imports.Entry
	var owners []graph.Node
	for _, n := range nodes {
		switch imp := n.(type) {
		case *graph.LocalMethodImportNode:
			entries = append(entries, imp)
			owners = append(owners, n)
		case *graph.ExternalMethodImportNode:
			entries = append(entries, imp)
			owners = append(owners, n)
		}
	}

	slots, err := table.Assign(entries)
	if err != nil {
		return nil, err
	}

	slotIndex := make(map[graph.Node]int, len(slots))
	for i, owner := range owners {
		slotIndex[owner] = slots[i].Index
	}
	return slotIndex, nil
}
