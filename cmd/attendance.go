package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kralovic/faceattend/internal/ledger"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Inspect recorded attendance",
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance marks for a day",
	Long: `List all attendance marks recorded for a calendar day.

Examples:
  # Today's attendance
  faceattend attendance list

  # A specific day
  faceattend attendance list --date 2024-01-15`,
	RunE: runAttendanceList,
}

var attendanceStudentCmd = &cobra.Command{
	Use:   "student <identity>",
	Short: "Show the running counters for one identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttendanceStudent,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.AddCommand(attendanceListCmd)
	attendanceCmd.AddCommand(attendanceStudentCmd)

	attendanceListCmd.Flags().String("date", "", "Day to list (YYYY-MM-DD, default today)")
}

func runAttendanceList(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		date = time.Now().Format(ledger.DateFormat)
	} else if _, err := time.Parse(ledger.DateFormat, date); err != nil {
		return fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
	}

	ctx := context.Background()
	rt, err := setupRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	led := ledger.New(rt.store)
	day, err := led.Day(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}
	if len(day) == 0 {
		fmt.Printf("No attendance recorded for %s.\n", date)
		return nil
	}

	identities := make([]string, 0, len(day))
	for id := range day {
		identities = append(identities, id)
	}
	sort.Strings(identities)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tMARKED AT")
	for _, id := range identities {
		fmt.Fprintf(w, "%s\t%s\n", id, day[id])
	}
	return w.Flush()
}

func runAttendanceStudent(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := setupRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	led := ledger.New(rt.store)
	rec, err := led.Student(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to read student record: %w", err)
	}
	if rec.Total == 0 {
		fmt.Printf("Identity %s has no attendance on record.\n", args[0])
		return nil
	}

	fmt.Printf("Identity:  %s\n", args[0])
	fmt.Printf("Total:     %d\n", rec.Total)
	fmt.Printf("Last seen: %s\n", rec.LastSeen)
	return nil
}
