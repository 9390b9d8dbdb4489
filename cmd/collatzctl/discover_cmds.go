package main

import (
	"fmt"
	"strings"

	collatzv1 "github.com/collatz-app/collatz/api/collatzv1"
	"github.com/spf13/cobra"
)

var recFilters collatzv1.RecommendationFilters

var recsCmd = &cobra.Command{
	Use:   "recs",
	Short: "Show job, hackathon and project recommendations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Recommend.GetRecommendations(ctx, &collatzv1.GetRecommendationsRequest{Filters: recFilters})
		if err != nil {
			return err
		}
		emit(resp, func() {
			printRecs("Jobs", resp.Jobs)
			printRecs("Hackathons", resp.Hackathons)
			printRecs("Projects", resp.Projects)
		})
		return nil
	},
}

func printRecs(title string, recs []collatzv1.Recommendation) {
	fmt.Printf("%s\n%s\n", title, strings.Repeat("-", len(title)))
	if len(recs) == 0 {
		fmt.Println("  (none)")
	}
	for _, r := range recs {
		fmt.Printf("  %.2f  %-40s  %-16s  %s\n", r.Score, truncate(r.Title, 40), truncate(r.Category, 16), r.ID)
	}
	fmt.Println()
}

var indexCmd = &cobra.Command{
	Use:   "index [kind...]",
	Short: "Embed rows that have no vector yet (external_jobs, hackathons, projects, profiles)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Index.RunEmbeddings(ctx, &collatzv1.RunEmbeddingsRequest{Kinds: args})
		if err != nil {
			return err
		}
		emit(resp, func() {
			fmt.Printf("%-14s %8s %8s %8s %8s\n", "KIND", "SCANNED", "EMBEDDED", "ZEROFILL", "FAILED")
			for _, r := range resp.Results {
				fmt.Printf("%-14s %8d %8d %8d %8d\n", r.Kind, r.Scanned, r.Embedded, r.ZeroFill, r.Failed)
			}
		})
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage the external job board import",
}

var jobsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Import listings from the external job board",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Index.FetchJobs(ctx, &collatzv1.FetchJobsRequest{})
		if err != nil {
			return err
		}
		emit(resp, func() {
			fmt.Printf("requests: %d  jobs: %d  pruned: %v  budget exhausted: %v\n", resp.Requests, resp.Jobs, resp.Pruned, resp.Exhausted)
		})
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show profile completeness and check-in streak",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		resp, err := daemonClient.Index.GetProfileStatus(ctx, &collatzv1.GetProfileStatusRequest{})
		if err != nil {
			return err
		}
		emit(resp, func() {
			fmt.Printf("User:     %s (%s)\n", resp.Username, resp.UserID)
			if resp.Complete {
				fmt.Println("Profile:  complete")
			} else {
				fmt.Printf("Profile:  missing %s\n", strings.Join(resp.Missing, ", "))
			}
			today := "no"
			if resp.CheckedInToday {
				today = "yes"
			}
			fmt.Printf("Streak:   %d days (best %d), checked in today: %s\n", resp.CurrentStreak, resp.BestStreak, today)
		})
		return nil
	},
}

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Record today's check-in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if _, err := daemonClient.Index.CheckIn(ctx, &collatzv1.CheckInRequest{}); err != nil {
			return err
		}
		emit(map[string]bool{"checked_in": true}, func() { fmt.Println("Checked in for today.") })
		return nil
	},
}

func init() {
	f := recsCmd.Flags()
	f.StringVar(&recFilters.Location, "location", "", "job location")
	f.StringVar(&recFilters.JobType, "job-type", "", "job type")
	f.StringVar(&recFilters.HackathonType, "hackathon-type", "", "hackathon type")
	f.StringSliceVar(&recFilters.Skills, "skill", nil, "required skill (repeatable)")
	f.StringSliceVar(&recFilters.Categories, "category", nil, "hackathon category (repeatable)")
	f.Int32Var(&recFilters.TeamSize, "team-size", 0, "hackathon team size")
	f.StringVar(&recFilters.Difficulty, "difficulty", "", "project difficulty")
	f.StringSliceVar(&recFilters.ProjectCategory, "project-category", nil, "project category (repeatable)")
	f.Int32Var(&recFilters.HackathonOffset, "hackathon-offset", 0, "skip this many hackathon matches")

	jobsCmd.AddCommand(jobsFetchCmd)
	rootCmd.AddCommand(recsCmd, indexCmd, jobsCmd, profileCmd, checkinCmd)
}
