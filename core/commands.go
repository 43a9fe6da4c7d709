package core

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/encodeous/wireline/state"
)

const helpText = `commands:
  send <node> <message>     reliably deliver a message
  table | t                 show the routing table
  ping <node> [count]       send echo requests
  tracert <node> [maxhops]  trace the path to a node
  corrupt on|off|<n>        corrupt the checksum of the next (n) segments
  loss on|off               drop the next outgoing segment
  neighbours | n            show neighbours heard on each link
  links                     show link counters
  help | h | ?              show this help
  exit | quit               leave the shell
`

// Exec runs one text command. Blocking commands use the node context.
// Returns ErrExit when the operator asked to leave.
func Exec(s *state.State, line string, w io.Writer) error {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)
	switch strings.ToLower(cmd) {
	case "":
		return nil
	case "send":
		target, msg, _ := strings.Cut(rest, " ")
		msg = strings.TrimSpace(msg)
		if target == "" || msg == "" {
			return fmt.Errorf("%w: send <node> <message>", ErrUsage)
		}
		res, err := Get[*Transport](s).Send(s.Context, state.NodeId(target), msg)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "delivered to %s (seq=%d, attempts=%d, %s)\n", res.Target, res.Seq, res.Attempts, res.Elapsed.Round(time.Millisecond))
		return nil
	case "table", "t":
		PrintRoutes(w, s.Routes.Snapshot())
		return nil
	case "ping":
		if len(args) < 1 {
			return fmt.Errorf("%w: ping <node> [count]", ErrUsage)
		}
		count, err := optionalInt(args, 1, state.DefaultPingCount)
		if err != nil {
			return err
		}
		_, err = Get[*Diagnostics](s).Ping(s.Context, state.NodeId(args[0]), count, w)
		return err
	case "tracert", "traceroute":
		if len(args) < 1 {
			return fmt.Errorf("%w: tracert <node> [maxhops]", ErrUsage)
		}
		hops, err := optionalInt(args, 1, state.DefaultMaxHops)
		if err != nil {
			return err
		}
		_, err = Get[*Diagnostics](s).Traceroute(s.Context, state.NodeId(args[0]), hops, w)
		return err
	case "corrupt":
		if len(args) != 1 {
			return fmt.Errorf("%w: corrupt on|off|<n>", ErrUsage)
		}
		switch args[0] {
		case "on":
			s.Faults.ArmCorruption(1)
		case "off":
			s.Faults.DisarmCorruption()
		default:
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("%w: corrupt on|off|<n>", ErrUsage)
			}
			s.Faults.ArmCorruption(n)
		}
		n, _ := s.Faults.Armed()
		fmt.Fprintf(w, "corruption armed for %d segment(s)\n", n)
		return nil
	case "loss":
		if len(args) != 1 {
			return fmt.Errorf("%w: loss on|off", ErrUsage)
		}
		switch args[0] {
		case "on":
			s.Faults.ArmLoss()
			fmt.Fprintln(w, "next segment will be dropped")
		case "off":
			s.Faults.DisarmLoss()
			fmt.Fprintln(w, "loss disarmed")
		default:
			return fmt.Errorf("%w: loss on|off", ErrUsage)
		}
		return nil
	case "neighbours", "neighbors", "n":
		PrintNeighbours(w, s.Neighbours.Snapshot(), time.Now())
		return nil
	case "links":
		PrintLinks(w, Get[*LinkMgr](s))
		return nil
	case "help", "h", "?":
		fmt.Fprint(w, helpText)
		return nil
	case "exit", "quit":
		return ErrExit
	default:
		return fmt.Errorf("%w: %q, type 'help' for a list", ErrUnknownCommand, cmd)
	}
}

func optionalInt(args []string, idx, def int) (int, error) {
	if len(args) <= idx {
		return def, nil
	}
	v, err := strconv.Atoi(args[idx])
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %q is not a positive number", ErrUsage, args[idx])
	}
	return v, nil
}

func PrintRoutes(w io.Writer, routes []state.RouteEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Target\tCost\tNextHop\tInterface")
	for _, r := range routes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Dest, state.FormatCost(r.Cost), r.NextHop, r.NextHopLink)
	}
	_ = tw.Flush()
}

func PrintNeighbours(w io.Writer, neighs []state.NeighbourRecord, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Interface\tNeighbour\tLastSeen")
	for _, n := range neighs {
		fmt.Fprintf(tw, "%s\t%s\t%s ago\n", n.Link, n.Id, now.Sub(n.LastSeen).Round(time.Millisecond))
	}
	_ = tw.Flush()
}

func PrintLinks(w io.Writer, lm *LinkMgr) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Interface\tLinesIn\tLinesOut\tBytesIn\tBytesOut")
	for _, st := range lm.Stats() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", st.Id, st.LinesIn, st.LinesOut, st.BytesIn, st.BytesOut)
	}
	_ = tw.Flush()
}
