package main

import (
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PlayersCouncil/game-analytics/internal/catalog"
	"github.com/PlayersCouncil/game-analytics/internal/community"
	"github.com/PlayersCouncil/game-analytics/internal/db"
	"github.com/PlayersCouncil/game-analytics/internal/era"
	"github.com/PlayersCouncil/game-analytics/internal/model"
)

var communitiesCmd = &cobra.Command{
	Use:   "communities",
	Short: "Curate detected archetype communities",
	Long:  "List, name, validate and edit detected communities and their card memberships. Custom memberships survive detection reruns.",
}

var communitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a scope's communities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := dbPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		scope, err := scopeFromFlags(cmd, pool)
		if err != nil {
			return err
		}

		communities, err := community.List(ctx, pool, scope)
		if err != nil {
			return err
		}

		for _, c := range communities {
			name := "(unnamed)"
			if c.ArchetypeName != nil {
				name = *c.ArchetypeName
			}
			tag := ""
			if c.IsOrphanPool {
				tag = " [orphan pool]"
			} else if !c.IsValid {
				tag = " [invalid]"
			}
			fmt.Printf("%6d  #%-3d %-32s cards=%-4d decks=%-6d lift=%.2f%s\n",
				c.ID, c.CommunityIndex, name, c.CardCount, c.DeckCount, c.AvgInternalLift, tag)
		}
		return nil
	},
}

var communitiesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a community and its members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommunity(cmd, args[0], func(pool *pgxpool.Pool, id int64) error {
			ctx := cmd.Context()

			c, err := community.Get(ctx, pool, id)
			if err != nil {
				return err
			}
			members, err := community.Members(ctx, pool, id)
			if err != nil {
				return err
			}

			blueprints := make([]string, len(members))
			for i, m := range members {
				blueprints[i] = m.CardBlueprint
			}
			cardNames, err := catalog.Names(ctx, pool, blueprints)
			if err != nil {
				return err
			}

			name := "(unnamed)"
			if c.ArchetypeName != nil {
				name = *c.ArchetypeName
			}
			fmt.Printf("community %d  #%d %s  scope=%s cards=%d decks=%d lift=%.2f\n",
				c.ID, c.CommunityIndex, name, c.Scope, c.CardCount, c.DeckCount, c.AvgInternalLift)
			if c.Notes != nil {
				fmt.Printf("notes: %s\n", *c.Notes)
			}
			for _, m := range members {
				fmt.Printf("  %-16s %-42s %-6s score=%.2f\n",
					m.CardBlueprint, cardNames[m.CardBlueprint], m.Type, m.MembershipScore)
			}
			return nil
		})
	},
}

var communitiesRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Set a community's archetype name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommunity(cmd, args[0], func(pool *pgxpool.Pool, id int64) error {
			return community.Update(cmd.Context(), pool, id, &args[1], nil, nil)
		})
	},
}

var communitiesValidateCmd = &cobra.Command{
	Use:   "validate <id>",
	Short: "Mark a community valid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommunity(cmd, args[0], func(pool *pgxpool.Pool, id int64) error {
			valid := true
			return community.Update(cmd.Context(), pool, id, nil, &valid, nil)
		})
	},
}

var communitiesInvalidateCmd = &cobra.Command{
	Use:   "invalidate <id>",
	Short: "Mark a community invalid (not a real archetype)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommunity(cmd, args[0], func(pool *pgxpool.Pool, id int64) error {
			valid := false
			return community.Update(cmd.Context(), pool, id, nil, &valid, nil)
		})
	},
}

var communitiesNoteCmd = &cobra.Command{
	Use:   "note <id> <text>",
	Short: "Attach curator notes to a community",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommunity(cmd, args[0], func(pool *pgxpool.Pool, id int64) error {
			return community.Update(cmd.Context(), pool, id, nil, nil, &args[1])
		})
	},
}

var communitiesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a community, reallocating its core cards",
	Long: `Delete a community. Each core card moves to the surviving community whose
core set it correlates with best, when that win is clear (sole candidate or
1.15x the runner-up); ambiguous cards go to the orphan pool instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommunity(cmd, args[0], func(pool *pgxpool.Pool, id int64) error {
			reallocated, orphaned, err := community.Delete(cmd.Context(), pool, id)
			if err != nil {
				return err
			}
			zap.L().Info("community deleted",
				zap.Int64("id", id),
				zap.Int("reallocated", reallocated),
				zap.Int("orphaned", orphaned),
			)
			fmt.Printf("deleted community %d: %d cards reallocated, %d orphaned\n", id, reallocated, orphaned)
			return nil
		})
	},
}

var communitiesAddCardCmd = &cobra.Command{
	Use:   "add-card <id> <blueprint>",
	Short: "Add a card to a community as a custom member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommunity(cmd, args[0], func(pool *pgxpool.Pool, id int64) error {
			score, _ := cmd.Flags().GetFloat64("score")
			got, err := community.AddMember(cmd.Context(), pool, id, args[1], model.MembershipCustom, score)
			if err != nil {
				return err
			}
			fmt.Printf("added %s to community %d (score %.2f)\n", args[1], id, got)
			return nil
		})
	},
}

var communitiesRemoveCardCmd = &cobra.Command{
	Use:   "remove-card <id> <blueprint>",
	Short: "Remove a card from a community",
	Long:  "Removing a core card from a regular community moves it to the orphan pool; flex and custom memberships are simply deleted.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCommunity(cmd, args[0], func(pool *pgxpool.Pool, id int64) error {
			return community.RemoveMember(cmd.Context(), pool, id, args[1])
		})
	},
}

var communitiesMoveCardCmd = &cobra.Command{
	Use:   "move-card <from-id> <to-id> <blueprint>",
	Short: "Move a card between communities",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fromID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "communities: parse id %q", args[0])
		}
		toID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "communities: parse id %q", args[1])
		}

		pool, err := dbPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		score, err := community.MoveMember(ctx, pool, fromID, toID, args[2])
		if err != nil {
			return err
		}
		fmt.Printf("moved %s from %d to %d (score %.2f)\n", args[2], fromID, toID, score)
		return nil
	},
}

// withCommunity parses the community id argument, opens the pool and runs fn.
func withCommunity(cmd *cobra.Command, idArg string, fn func(pool *pgxpool.Pool, id int64) error) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return eris.Wrapf(err, "communities: parse id %q", idArg)
	}

	pool, err := dbPool(cmd.Context())
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(pool, id)
}

// scopeFromFlags resolves --format, --side and optional --era into a scope.
func scopeFromFlags(cmd *cobra.Command, pool db.Pool) (model.Scope, error) {
	format, _ := cmd.Flags().GetString("format")
	sideStr, _ := cmd.Flags().GetString("side")
	eraName, _ := cmd.Flags().GetString("era")

	if format == "" || sideStr == "" {
		return model.Scope{}, eris.New("communities: --format and --side are required")
	}
	side, err := model.ParseSide(sideStr)
	if err != nil {
		return model.Scope{}, err
	}

	scope := model.Scope{Format: format, Side: side}
	if eraName != "" {
		e, err := era.ByName(cmd.Context(), pool, eraName)
		if err != nil {
			return model.Scope{}, err
		}
		scope.EraID = &e.ID
	}
	return scope, nil
}

func init() {
	communitiesListCmd.Flags().String("format", "", "format name")
	communitiesListCmd.Flags().String("side", "", "side (free_peoples or shadow)")
	communitiesListCmd.Flags().String("era", "", "era name")
	communitiesAddCardCmd.Flags().Float64("score", 0, "membership score to record")

	communitiesCmd.AddCommand(
		communitiesListCmd,
		communitiesShowCmd,
		communitiesRenameCmd,
		communitiesValidateCmd,
		communitiesInvalidateCmd,
		communitiesNoteCmd,
		communitiesDeleteCmd,
		communitiesAddCardCmd,
		communitiesRemoveCardCmd,
		communitiesMoveCardCmd,
	)
	rootCmd.AddCommand(communitiesCmd)
}
