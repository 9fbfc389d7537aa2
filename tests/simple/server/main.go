// Command server runs a small end-to-end playground: two in-process
// GraphQL subschema services (accounts and reviews) plus the stitched
// gateway in front of them. Useful for poking at the gateway with curl or
// GraphiQL without any external backend.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/BigSchema/stitch/internal/engine"
	"github.com/BigSchema/stitch/internal/eventbus"
	"github.com/BigSchema/stitch/internal/httpexec"
	"github.com/BigSchema/stitch/internal/language"
	"github.com/BigSchema/stitch/internal/server"
	"github.com/BigSchema/stitch/internal/superschema"
)

const accountsSDL = `
type Query {
  user(id: ID): User
  users: [User]
}
type User {
  id: ID
  name: String
}
`

const reviewsSDL = `
type Query {
  reviews: [Review]
}
type User {
  id: ID
  reviews: [Review]
}
type Review {
  id: ID
  body: String
  rating: Int
}
`

var users = []map[string]any{
	{"__typename": "User", "id": "user-1", "name": "John Doe"},
	{"__typename": "User", "id": "user-2", "name": "Jane Smith"},
}

var reviews = []any{
	map[string]any{"__typename": "Review", "id": "review-1", "body": "Great gateway!", "rating": 5},
	map[string]any{"__typename": "Review", "id": "review-2", "body": "Stitches well.", "rating": 4},
}

// subschemaService answers GraphQL-over-HTTP requests by projecting the
// requested selections out of the seeded data.
func subschemaService(name string, roots map[string]func(args map[string]any) any) http.Handler {
	return loggingMiddleware(name, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		doc, err := language.ParseQuery(req.Query)
		if err != nil {
			writeResult(w, map[string]any{"errors": []any{map[string]any{"message": err.Error()}}})
			return
		}
		data := map[string]any{}
		for _, sel := range doc.Operations[0].SelectionSet {
			field, ok := sel.(*language.Field)
			if !ok {
				continue
			}
			root, known := roots[field.Name]
			if !known {
				continue
			}
			args := map[string]any{}
			for _, arg := range field.Arguments {
				args[arg.Name] = language.ValueToGo(arg.Value, req.Variables)
			}
			data[responseKey(field)] = project(root(args), field.SelectionSet)
		}
		writeResult(w, map[string]any{"data": data})
	}))
}

func responseKey(field *language.Field) string {
	if field.Alias != "" {
		return field.Alias
	}
	return field.Name
}

// project narrows a resolved value to the requested selections.
func project(value any, selections language.SelectionSet) any {
	switch v := value.(type) {
	case map[string]any:
		if len(selections) == 0 {
			return v
		}
		out := map[string]any{}
		for _, sel := range selections {
			field, ok := sel.(*language.Field)
			if !ok {
				continue
			}
			if field.Name == "__typename" {
				out[responseKey(field)] = v["__typename"]
				continue
			}
			out[responseKey(field)] = project(v[field.Name], field.SelectionSet)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = project(item, selections)
		}
		return out
	default:
		return v
	}
}

func writeResult(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// loggingMiddleware logs exactly one line per request with service,
// method, and duration.
func loggingMiddleware(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("subschema=%s method=%s duration=%s", name, r.Method, time.Since(start))
	})
}

func main() {
	addr := flag.String("addr", ":8080", "the address to listen on")
	flag.Parse()

	accounts := httptest.NewServer(subschemaService("accounts", map[string]func(map[string]any) any{
		"user": func(args map[string]any) any {
			id, _ := args["id"].(string)
			for _, u := range users {
				if u["id"] == id {
					return u
				}
			}
			return nil
		},
		"users": func(map[string]any) any {
			out := make([]any, len(users))
			for i, u := range users {
				out[i] = u
			}
			return out
		},
	}))
	defer accounts.Close()

	reviewsSrv := httptest.NewServer(subschemaService("reviews", map[string]func(map[string]any) any{
		"reviews": func(map[string]any) any { return reviews },
	}))
	defer reviewsSrv.Close()

	accountsSchema, err := language.LoadSchema("accounts", accountsSDL)
	if err != nil {
		log.Fatalf("accounts schema: %v", err)
	}
	reviewsSchema, err := language.LoadSchema("reviews", reviewsSDL)
	if err != nil {
		log.Fatalf("reviews schema: %v", err)
	}

	ss, err := superschema.New(
		&superschema.Subschema{
			Name:     "accounts",
			Schema:   accountsSchema,
			Executor: httpexec.NewExecutor("accounts", accounts.URL),
		},
		&superschema.Subschema{
			Name:     "reviews",
			Schema:   reviewsSchema,
			Executor: httpexec.NewExecutor("reviews", reviewsSrv.URL),
		},
	)
	if err != nil {
		log.Fatalf("super-schema: %v", err)
	}

	eventbus.Use(eventbus.New())
	h, err := server.New(engine.New(ss), server.WithPretty())
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)

	log.Printf("stitched gateway on %s (accounts=%s reviews=%s)", *addr, accounts.URL, reviewsSrv.URL)
	srv := &http.Server{Addr: *addr, Handler: mux}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
