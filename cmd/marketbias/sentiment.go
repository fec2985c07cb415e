package main

import (
	"fmt"
	"strings"

	"github.com/newthinker/marketbias/internal/sentiment"
	"github.com/spf13/cobra"
)

var lexiconPath string

var sentimentCmd = &cobra.Command{
	Use:   "sentiment HEADLINE",
	Short: "Classify a headline with the keyword lexicon",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSentiment,
}

func init() {
	sentimentCmd.Flags().StringVar(&lexiconPath, "lexicon", "", "YAML lexicon file (defaults to the built-in word lists)")
	rootCmd.AddCommand(sentimentCmd)
}

func runSentiment(cmd *cobra.Command, args []string) error {
	lex := sentiment.DefaultLexicon()
	if lexiconPath != "" {
		var err error
		lex, err = sentiment.LoadLexicon(lexiconPath)
		if err != nil {
			return err
		}
	}

	c := sentiment.New(lex)
	headline := strings.Join(args, " ")
	s := c.Analyze(headline)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Sentiment"), s)
	fmt.Fprintf(out, "%s %d\n", labelStyle.Render("Score"), c.Score(headline))
	fmt.Fprintf(out, "%s %t\n", labelStyle.Render("Bias impact"), c.HasBiasImpact(headline))
	return nil
}
