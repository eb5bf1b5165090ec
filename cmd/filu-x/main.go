// Command filu-x is the node CLI: key management, publishing, resolution and
// follow-sync on top of the configured store and name-layer backends.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/mikael1979/filu-x/config"
	"github.com/mikael1979/filu-x/document"
	"github.com/mikael1979/filu-x/feed"
	"github.com/mikael1979/filu-x/fxerr"
	"github.com/mikael1979/filu-x/identity"
	"github.com/mikael1979/filu-x/link"
	"github.com/mikael1979/filu-x/naming"
	"github.com/mikael1979/filu-x/naming/grpcns"
	"github.com/mikael1979/filu-x/resolve"
	"github.com/mikael1979/filu-x/storage"
	"github.com/mikael1979/filu-x/storage/bundle"
	"github.com/mikael1979/filu-x/storage/grpccas"
	"github.com/mikael1979/filu-x/thread"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Security failures are fatal; resolution failures may clear on retry.
		if fxerr.Retryable(err) {
			fmt.Fprintln(os.Stderr, "transient:", err)
			os.Exit(3)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	verbose    bool

	log   *zap.Logger
	store storage.CAS
	names naming.NameLayer
	close func() error
}

func (a *app) open() error {
	if a.verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		a.log = log
	} else {
		a.log = zap.NewNop()
	}

	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return err
	}
	store, closeStore, err := cfg.OpenStore()
	if err != nil {
		return err
	}
	names, closeNames, err := cfg.OpenNames()
	if err != nil {
		_ = closeStore()
		return err
	}
	a.store = store
	a.names = names
	a.close = func() error {
		nerr := closeNames()
		serr := closeStore()
		if nerr != nil {
			return nerr
		}
		return serr
	}
	return nil
}

func (a *app) resolver() *resolve.Resolver {
	return resolve.New(a.store, a.names, resolve.WithLogger(a.log))
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "filu-x",
		Short:         "Decentralized content-addressed publishing node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "filu-x.json", "node config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newKeygenCmd(),
		newResolveCmd(a),
		newPostCmd(a),
		newThreadCmd(a),
		newSyncCmd(a),
		newBundleCmd(a),
		newServeCmd(a),
	)
	return root
}

func newBundleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Move content between nodes on removable media",
	}
	cmd.AddCommand(newBundleExportCmd(a), newBundleImportCmd(a))
	return cmd
}

func newBundleExportCmd(a *app) *cobra.Command {
	var (
		outPath string
		binds   []string
	)
	cmd := &cobra.Command{
		Use:   "export <cid>...",
		Short: "Export blocks (and optional name bindings) to a bundle file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			ids := make([]cid.Cid, 0, len(args))
			for _, s := range args {
				id, err := cid.Decode(s)
				if err != nil {
					return fmt.Errorf("bad cid %q: %w", s, err)
				}
				ids = append(ids, id)
			}
			names := map[string]cid.Cid{}
			for _, b := range binds {
				tok, cs, ok := strings.Cut(b, "=")
				if !ok || tok == "" {
					return fmt.Errorf("bad binding %q, want name=cid", b)
				}
				id, err := cid.Decode(cs)
				if err != nil {
					return fmt.Errorf("bad binding %q: %w", b, err)
				}
				names[tok] = id
			}

			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := bundle.Export(f, a.store, ids, bundle.ExportOptions{
				IncludeIndex: true,
				Names:        names,
			}); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d blocks to %s\n", len(ids), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "filu-x.bundle", "bundle output file")
	cmd.Flags().StringArrayVar(&binds, "bind", nil, "name binding to include, as name=cid")
	return cmd
}

func newBundleImportCmd(a *app) *cobra.Command {
	var (
		inPath  string
		publish bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a bundle file into the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			f, err := os.Open(inPath)
			if err != nil {
				return err
			}
			defer f.Close()

			sum, err := bundle.Import(f, a.store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d blocks\n", sum.Blocks)
			for name, id := range sum.Names {
				if !publish {
					fmt.Fprintf(cmd.OutOrStdout(), "binding (not published): %s -> %s\n", name, id)
					continue
				}
				if err := a.names.Publish(cmd.Context(), name, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published: %s -> %s\n", name, id)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&inPath, "in", "i", "filu-x.bundle", "bundle input file")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish bundled name bindings locally")
	return cmd
}

func newKeygenCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an identity key and print its public key and name",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := make([]byte, 32)
			if _, err := rand.Read(seed); err != nil {
				return err
			}
			priv, err := identity.Ed25519FromSeed(seed)
			if err != nil {
				return err
			}
			name, err := naming.DeriveName(priv.Public())
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, []byte(hex.EncodeToString(seed)+"\n"), 0o600); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pubkey:", priv.Public().String())
			fmt.Fprintln(cmd.OutOrStdout(), "name:  ", name)
			fmt.Fprintln(cmd.OutOrStdout(), "seed written to", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "filu-x.key", "seed output file")
	return cmd
}

func loadKey(path string) (identity.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return identity.PrivateKey{}, err
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(b)))
	if err != nil {
		return identity.PrivateKey{}, fmt.Errorf("key file %s: %w", path, err)
	}
	return identity.Ed25519FromSeed(seed)
}

func newResolveCmd(a *app) *cobra.Command {
	var (
		expectedKey string
		unverified  bool
		noCache     bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <fx-link>",
		Short: "Resolve and verify an fx:// link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			l, err := link.Parse(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if unverified {
				u, err := a.resolver().ResolveUnverified(ctx, l)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "UNVERIFIED (%s)\n", u.Skipped)
				return printDocument(cmd, u.CID.String(), string(u.Kind), u.Fields)
			}

			opts := resolve.Options{AllowCache: !noCache}
			if expectedKey != "" {
				pub, err := identity.ParsePublicKey(expectedKey)
				if err != nil {
					return err
				}
				opts.ExpectedKey = &pub
			}
			v, err := a.resolver().Resolve(ctx, l, opts)
			if err != nil {
				return err
			}
			return printDocument(cmd, v.CID.String(), string(v.Kind), v.Fields)
		},
	}
	cmd.Flags().StringVar(&expectedKey, "expected-key", "", "trusted key for manifest verification")
	cmd.Flags().BoolVar(&unverified, "unverified", false, "skip signature and safety checks")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the verified cache")
	return cmd
}

func printDocument(cmd *cobra.Command, cid, kind string, fields document.Fields) error {
	fmt.Fprintln(cmd.OutOrStdout(), "cid: ", cid)
	fmt.Fprintln(cmd.OutOrStdout(), "kind:", kind)
	b, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

func newPostCmd(a *app) *cobra.Command {
	var (
		keyPath  string
		author   string
		postType string
		replyTo  string
		threadID string
	)
	cmd := &cobra.Command{
		Use:   "post <content>",
		Short: "Sign and publish a post, then update the author manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			priv, err := loadKey(keyPath)
			if err != nil {
				return err
			}
			now := time.Now().UTC().Format(time.RFC3339)
			content := args[0]

			fields := document.Fields{
				"id":           identity.DerivePostID(priv.Public().String(), now, content),
				"type":         postType,
				"author":       author,
				"pubkey":       priv.Public().String(),
				"content":      content,
				"content_type": "text/plain",
				"created_at":   now,
			}
			if replyTo != "" {
				fields["reply_to"] = replyTo
			}
			if threadID != "" {
				fields["thread_id"] = threadID
			}
			if err := identity.SignFields(fields, priv); err != nil {
				return err
			}
			b, err := document.Encode(fields)
			if err != nil {
				return err
			}
			id, err := a.store.Put(b)
			if err != nil {
				return err
			}

			pub := &feed.Publisher{Store: a.store, Names: a.names, Key: priv, Author: author, Log: a.log}
			if err := pub.Init(cmd.Context()); err != nil {
				return err
			}
			manifestCID, err := pub.Append(cmd.Context(), document.ManifestEntry{
				Path:      "posts/" + fields["id"].(string),
				CID:       id.String(),
				Type:      "post",
				CreatedAt: now,
			}, now)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "post:    ", link.ForPost(id.String(), priv.Public()).String())
			fmt.Fprintln(cmd.OutOrStdout(), "manifest:", manifestCID.String(), "v", pub.Version())
			fmt.Fprintln(cmd.OutOrStdout(), "name:    ", pub.Name())
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyPath, "key", "k", "filu-x.key", "identity seed file")
	cmd.Flags().StringVar(&author, "author", "", "display author")
	cmd.Flags().StringVar(&postType, "type", "text", "post type")
	cmd.Flags().StringVar(&replyTo, "reply-to", "", "post id this replies to")
	cmd.Flags().StringVar(&threadID, "thread", "", "thread id")
	return cmd
}

func newThreadCmd(a *app) *cobra.Command {
	var expectedKey string
	cmd := &cobra.Command{
		Use:   "thread <fx-link>",
		Short: "Resolve a thread manifest and render it as a reply tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			pub, err := identity.ParsePublicKey(expectedKey)
			if err != nil {
				return err
			}
			l, err := link.Parse(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			r := a.resolver()

			v, err := r.Resolve(ctx, l, resolve.Options{ExpectedKey: &pub})
			if err != nil {
				return err
			}
			if v.Kind != document.KindThreadManifest {
				return fxerr.New(fxerr.KindUnknownKind, "FX-CLI-001", "link does not resolve to a thread manifest")
			}
			manifest, err := thread.FromFields(v.Fields)
			if err != nil {
				return err
			}

			var posts []*document.Post
			for _, ref := range manifest.Posts {
				pv, err := r.Resolve(ctx, link.Content(ref.CID), resolve.Options{AllowCache: true})
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", ref.CID, err)
					continue
				}
				p, err := document.AsPost(pv.Fields)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", ref.CID, err)
					continue
				}
				posts = append(posts, p)
			}

			forest, warnings := thread.Reconstruct(posts, thread.WithLogger(a.log))
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d participants)\n", manifest.Title, manifest.ParticipantCount())
			forest.Walk(func(n *thread.Node, depth int) bool {
				indent := strings.Repeat("  ", depth)
				fmt.Fprintf(cmd.OutOrStdout(), "%s- [%s] %s\n", indent, n.Post.Author, n.Post.Content)
				return true
			})
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s (%s)\n", w.Reason, w.PostID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&expectedKey, "expected-key", "", "thread creator's public key")
	_ = cmd.MarkFlagRequired("expected-key")
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	var (
		profileName string
		pubkey      string
		displayName string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one followed identity and list its new posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			list := feed.NewFollowList()
			collision, err := list.Add(displayName, pubkey, profileName)
			if err != nil {
				return err
			}
			if collision != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "advisory: display name %q already used by %s\n",
					collision.Normalized, collision.ExistingPubkey)
			}

			syncer := &feed.Syncer{Resolver: a.resolver(), Tracker: feed.NewTracker(), Log: a.log}
			for _, res := range syncer.SyncFollowed(cmd.Context(), list) {
				if res.Err != nil {
					if res.Entry.Downgraded {
						fmt.Fprintf(cmd.ErrOrStderr(), "DOWNGRADED %s: %v\n", res.Entry.DisplayName, res.Err)
						continue
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "failed %s: %v\n", res.Entry.DisplayName, res.Err)
					continue
				}
				for _, id := range res.NewPosts {
					fmt.Fprintln(cmd.OutOrStdout(), link.Content(id).String())
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&profileName, "profile", "", "profile name binding")
	cmd.Flags().StringVar(&pubkey, "pubkey", "", "followed public key")
	cmd.Flags().StringVar(&displayName, "name", "follow", "display name")
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("pubkey")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured store and name layer over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			defer a.close()

			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return err
			}
			srv := grpc.NewServer()
			grpccas.RegisterContentStoreServer(srv, &grpccas.Server{CAS: a.store})
			grpcns.RegisterNameLayerServer(srv, &grpcns.Server{Names: a.names})

			go func() {
				<-cmd.Context().Done()
				srv.GracefulStop()
			}()
			fmt.Fprintln(cmd.OutOrStdout(), "listening on", lis.Addr())
			return srv.Serve(lis)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:7411", "listen address")
	return cmd
}
