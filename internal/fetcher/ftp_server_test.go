package fetcher

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// miniFTPServer is a minimal FTP server for testing. It supports just
// enough of the protocol for anonymous RETR.
type miniFTPServer struct {
	listener net.Listener
	fileData map[string]string
	user     string
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
}

func newMiniFTPServer(t *testing.T, files map[string]string) *miniFTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &miniFTPServer{
		listener: ln,
		fileData: files,
	}

	s.wg.Add(1)
	go s.serve(t)

	return s
}

func (s *miniFTPServer) addr() string {
	return s.listener.Addr().String()
}

func (s *miniFTPServer) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.listener.Close() //nolint:errcheck
	s.wg.Wait()
}

func (s *miniFTPServer) serve(t *testing.T) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handleConn(t, conn)
	}
}

func (s *miniFTPServer) handleConn(_ *testing.T, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close() //nolint:errcheck

	conn.SetDeadline(time.Now().Add(10 * time.Second)) //nolint:errcheck

	writer := bufio.NewWriter(conn)
	reader := bufio.NewReader(conn)

	fmt.Fprintf(writer, "220 Mini FTP Server ready\r\n") //nolint:errcheck
	writer.Flush()                                       //nolint:errcheck

	var dataListener net.Listener

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		parts := strings.SplitN(line, " ", 2)
		cmd := strings.ToUpper(parts[0])
		arg := ""
		if len(parts) > 1 {
			arg = parts[1]
		}

		switch cmd {
		case "USER":
			s.mu.Lock()
			s.user = arg
			s.mu.Unlock()
			fmt.Fprintf(writer, "230 User logged in\r\n") //nolint:errcheck
			writer.Flush()                                //nolint:errcheck

		case "PASS":
			fmt.Fprintf(writer, "230 User logged in\r\n") //nolint:errcheck
			writer.Flush()                                //nolint:errcheck

		case "FEAT":
			fmt.Fprintf(writer, "211-Features:\r\n") //nolint:errcheck
			fmt.Fprintf(writer, " UTF8\r\n")         //nolint:errcheck
			fmt.Fprintf(writer, "211 End\r\n")       //nolint:errcheck
			writer.Flush()                           //nolint:errcheck

		case "TYPE":
			fmt.Fprintf(writer, "200 Type set to %s\r\n", arg) //nolint:errcheck
			writer.Flush()                                     //nolint:errcheck

		case "EPSV":
			var err error
			dataListener, err = net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				fmt.Fprintf(writer, "425 Can't open data connection\r\n") //nolint:errcheck
				writer.Flush()                                            //nolint:errcheck
				continue
			}
			port := dataListener.Addr().(*net.TCPAddr).Port
			fmt.Fprintf(writer, "229 Entering Extended Passive Mode (|||%d|)\r\n", port) //nolint:errcheck
			writer.Flush()                                                               //nolint:errcheck

		case "PASV":
			var err error
			dataListener, err = net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				fmt.Fprintf(writer, "425 Can't open data connection\r\n") //nolint:errcheck
				writer.Flush()                                            //nolint:errcheck
				continue
			}
			addr := dataListener.Addr().(*net.TCPAddr)
			p1 := addr.Port / 256
			p2 := addr.Port % 256
			fmt.Fprintf(writer, "227 Entering Passive Mode (127,0,0,1,%d,%d)\r\n", p1, p2) //nolint:errcheck
			writer.Flush()                                                                 //nolint:errcheck

		case "RETR":
			if dataListener == nil {
				fmt.Fprintf(writer, "425 Use PASV first\r\n") //nolint:errcheck
				writer.Flush()                                //nolint:errcheck
				continue
			}

			content, ok := s.fileData[arg]
			if !ok {
				fmt.Fprintf(writer, "550 File not found\r\n") //nolint:errcheck
				writer.Flush()                                //nolint:errcheck
				dataListener.Close()                          //nolint:errcheck
				dataListener = nil
				continue
			}

			fmt.Fprintf(writer, "150 Opening data connection\r\n") //nolint:errcheck
			writer.Flush()                                         //nolint:errcheck

			dataConn, err := dataListener.Accept()
			if err != nil {
				fmt.Fprintf(writer, "425 Can't open data connection\r\n") //nolint:errcheck
				writer.Flush()                                            //nolint:errcheck
				continue
			}

			io.WriteString(dataConn, content) //nolint:errcheck
			dataConn.Close()                  //nolint:errcheck
			dataListener.Close()              //nolint:errcheck
			dataListener = nil

			fmt.Fprintf(writer, "226 Transfer complete\r\n") //nolint:errcheck
			writer.Flush()                                   //nolint:errcheck

		case "QUIT":
			fmt.Fprintf(writer, "221 Goodbye\r\n") //nolint:errcheck
			writer.Flush()                         //nolint:errcheck
			return

		case "OPTS":
			fmt.Fprintf(writer, "200 OK\r\n") //nolint:errcheck
			writer.Flush()                    //nolint:errcheck

		default:
			fmt.Fprintf(writer, "502 Command not implemented\r\n") //nolint:errcheck
			writer.Flush()                                         //nolint:errcheck
		}
	}
}


func (s *miniFTPServer) lastUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}
