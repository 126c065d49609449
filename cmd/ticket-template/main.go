// 本文件用于程序启动入口
package main

func main() {
	Execute()
}
